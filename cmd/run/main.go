package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/engine"
	"github.com/wippyai/wasi-adapter/runtime"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

var version = "<unknown>"

// exitError carries a guest's non-zero exit code out of cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("guest exited with code %d", e.code)
}

func configureCLI() *cobra.Command {
	var verbose bool
	var log *zap.Logger

	rootCommand := &cobra.Command{
		Use:           "wasi-run",
		Short:         "run WASI preview1 modules",
		Long:          "wasi-run - run WASI preview1 modules over the preview2 capability hosts",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			log = l
			engine.SetLogger(l)
			runtime.SetLogger(l)
			preview1.SetLogger(l)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	rootCommand.AddCommand(runCommand())
	rootCommand.AddCommand(traceCommand())
	rootCommand.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every flat-interface call at debug level")

	return rootCommand
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	rootCommand := configureCLI()

	if err := rootCommand.Execute(); err != nil {
		if exit, ok := err.(*exitError); ok {
			os.Exit(exit.code)
		}

		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
