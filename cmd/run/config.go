package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/runtime"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

// fileConfig is the YAML form of a run configuration.
type fileConfig struct {
	Env              map[string]string `yaml:"env"`
	Args             []string          `yaml:"args"`
	Preopens         []filePreopen     `yaml:"preopens"`
	Cwd              string            `yaml:"cwd"`
	Stdin            string            `yaml:"stdin"`
	Variant          string            `yaml:"variant"`
	Trace            int               `yaml:"trace"`
	MemoryLimitPages uint32            `yaml:"memory_limit_pages"`
	EmptyStdin       bool              `yaml:"empty_stdin"`
}

type filePreopen struct {
	Host  string `yaml:"host"`
	Guest string `yaml:"guest"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Detail("config file").
			Cause(err).
			Build()
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.ParseFailed("config file "+path, err)
	}
	return &fc, nil
}

// apply copies the fields set in the file onto cfg.
func (fc *fileConfig) apply(cfg *runtime.Config) error {
	for k, v := range fc.Env {
		cfg.Env[k] = v
	}
	if len(fc.Args) > 0 {
		cfg.Args = append(cfg.Args[:0:0], fc.Args...)
	}
	for _, p := range fc.Preopens {
		guest := p.Guest
		if guest == "" {
			guest = p.Host
		}
		cfg.Preopens = append(cfg.Preopens, runtime.Preopen{Host: p.Host, Guest: guest})
	}
	if fc.Cwd != "" {
		cfg.Cwd = fc.Cwd
	}
	if fc.Variant != "" {
		v, err := parseVariant(fc.Variant)
		if err != nil {
			return err
		}
		cfg.Variant = v
	}
	if fc.Trace != 0 {
		cfg.Trace = fc.Trace
	}
	if fc.MemoryLimitPages != 0 {
		cfg.MemoryLimitPages = fc.MemoryLimitPages
	}
	if fc.EmptyStdin {
		cfg.EmptyStdin = true
	}
	return nil
}

func parseVariant(s string) (preview1.Variant, error) {
	switch s {
	case "command":
		return preview1.VariantCommand, nil
	case "reactor":
		return preview1.VariantReactor, nil
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown variant %q: want command or reactor", s))
}

// parseEnv parses NAME=VALUE.
func parseEnv(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("malformed environment variable %q: want NAME=VALUE", s))
	}
	return name, value, nil
}

// parseDir parses host[:guest]. The guest name defaults to the host path.
func parseDir(s string) (runtime.Preopen, error) {
	host, guest, ok := strings.Cut(s, ":")
	if host == "" || (ok && guest == "") {
		return runtime.Preopen{}, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("malformed preopen %q: want host[:guest]", s))
	}
	if !ok {
		guest = host
	}
	return runtime.Preopen{Host: host, Guest: guest}, nil
}
