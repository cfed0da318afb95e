package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
)

var (
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fitter",
		Short: "Black-box parameter fitter for expensive simulators",
		Long: `fitter searches a bounded parameter space with a population optimizer,
evaluating every candidate on a local or remote pool of simulator workers.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				level = "info"
			}
			logger.SetDefault(logger.NewWithFormat(logFormat, level, os.Stdout))
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); run defaults to the document's log_level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(newRunCmd(), newWorkerCmd(), newBestCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
