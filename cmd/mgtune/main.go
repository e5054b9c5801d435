package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pinc-sim/mgtune/pkg/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mgtune",
		Short:         "Tune PINC multigrid solver settings by repeated timed runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config/mgtune.yaml", "configuration file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json); overrides config")

	cmd.AddCommand(
		newRunCommand(opts),
		newValidateCommand(opts),
		newInspectCommand(opts),
		newHistoryCommand(opts),
	)
	return cmd
}

// setupLogger installs the default logger, flags taking precedence over config
func (o *rootOptions) setupLogger(cfgLevel, cfgFormat string) {
	level, format := cfgLevel, cfgFormat
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	logger.SetDefault(logger.NewWithFormat(format, level, os.Stderr))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Error("mgtune failed", "error", err)
		os.Exit(1)
	}
}
