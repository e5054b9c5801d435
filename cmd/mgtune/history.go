package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinc-sim/mgtune/internal/journal"
	"github.com/pinc-sim/mgtune/pkg/config"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List journaled searches with their best trial",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.setupLogger(cfg.LogLevel, cfg.LogFormat)
			if cfg.Journal == nil || cfg.Journal.Path == "" {
				return fmt.Errorf("no journal configured")
			}

			j, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			sessions, err := j.Sessions(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTARTED\tSTATUS\tRUNS\tBEST_NS\tBEST_SETTINGS")
			for _, s := range sessions {
				trials, err := j.Trials(ctx, s.ID)
				if err != nil {
					return err
				}
				bestNs, bestSettings := "-", "-"
				best, err := j.Best(ctx, s.ID)
				switch {
				case err == nil:
					bestNs = fmt.Sprintf("%g", best.Measurement.Time)
					bestSettings = best.Settings.String()
				case !errors.Is(err, journal.ErrSessionNotFound):
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.StartedAt.Format(time.RFC3339), s.Status, len(trials), bestNs, bestSettings)
			}
			return w.Flush()
		},
	}
}
