package runtime

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

// Preopen maps a host directory to the name the guest sees it under.
type Preopen struct {
	Host  string
	Guest string
}

// Config describes the environment a guest runs in.
type Config struct {
	// Stdin is read by fd 0. A nil reader gives an empty stream.
	Stdin io.Reader
	// Stdout and Stderr receive fds 1 and 2. When nil, output is buffered
	// and available from Instance.Stdout and Instance.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	Env  map[string]string
	Cwd  string
	Args []string

	// Preopens become fds 3 and up, in order.
	Preopens []Preopen

	// Trace keeps the last Trace flat-interface calls of each instance.
	// Zero disables tracing.
	Trace int

	MemoryLimitPages uint32
	Variant          preview1.Variant

	// EmptyStdin makes fd 0 an input that is always at end of stream.
	EmptyStdin bool
}

// DefaultConfig returns a command configuration with no arguments, no
// environment and no preopens.
func DefaultConfig() *Config {
	return &Config{
		Env:     make(map[string]string),
		Cwd:     "/",
		Variant: preview1.VariantCommand,
	}
}

func (c *Config) validate() error {
	switch c.Variant {
	case preview1.VariantCommand, preview1.VariantReactor:
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown variant %d", c.Variant))
	}
	if c.Trace < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "trace limit must not be negative")
	}
	for _, p := range c.Preopens {
		if p.Guest == "" {
			return errors.InvalidInput(errors.PhaseConfig, "preopen "+p.Host+" has no guest name")
		}
		info, err := os.Stat(p.Host)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindNotFound).
				Path(p.Host).
				Detail("preopen directory").
				Cause(err).
				Build()
		}
		if !info.IsDir() {
			return errors.InvalidInput(errors.PhaseConfig, "preopen "+p.Host+" is not a directory")
		}
	}
	for k := range c.Env {
		if k == "" || strings.ContainsRune(k, '=') {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("invalid environment name %q", k))
		}
	}
	return nil
}
