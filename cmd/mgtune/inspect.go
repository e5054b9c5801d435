package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pinc-sim/mgtune/internal/results"
	"github.com/pinc-sim/mgtune/pkg/config"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <results.h5>",
		Short: "Print the (index, time, cycles) rows of a PINC timer file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// dataset layout comes from --config only when it was given
			resCfg := config.DefaultResults()
			if f := cmd.Flag("config"); f != nil && f.Changed {
				cfg, err := config.LoadConfig(opts.configPath)
				if err != nil {
					return err
				}
				opts.setupLogger(cfg.LogLevel, cfg.LogFormat)
				resCfg = cfg.Results
			} else {
				opts.setupLogger("info", "text")
			}

			rows, err := results.NewHDF5Reader(resCfg, args[0]).Rows()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tTIME_NS\tCYCLES")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%g\t%d\n", r.RunIndex, r.Time, r.Cycles)
			}
			return w.Flush()
		},
	}
}
