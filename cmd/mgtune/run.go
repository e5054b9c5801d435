package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/pinc-sim/mgtune/internal/journal"
	"github.com/pinc-sim/mgtune/internal/monitor"
	"github.com/pinc-sim/mgtune/internal/results"
	"github.com/pinc-sim/mgtune/internal/runner"
	"github.com/pinc-sim/mgtune/internal/tuner"
	"github.com/pinc-sim/mgtune/pkg/config"
	"github.com/pinc-sim/mgtune/pkg/logger"
	"github.com/pinc-sim/mgtune/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the multigrid parameter search against PINC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.setupLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSearch(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

func initialSettings(cfg *config.Config) tuner.Settings {
	in := cfg.Search.Initial
	return tuner.Settings{
		PreSmooth:   in.PreSmooth,
		PostSmooth:  in.PostSmooth,
		CoarseSolve: in.CoarseSolve,
		Levels:      in.Levels,
	}
}

// runSearch wires runner, reader, journal and monitor around one search and
// writes the report to out. The monitor servers live as long as the search.
func runSearch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	initial := initialSettings(cfg)

	proc, err := runner.NewProcessRunner(cfg.Runner, cfg.ResultsPath())
	if err != nil {
		return err
	}
	if cfg.Runner.ShouldClean() {
		if err := proc.Clean(); err != nil {
			return fmt.Errorf("failed to clean work dir: %w", err)
		}
	}
	reader := results.NewHDF5Reader(cfg.Results, cfg.ResultsPath())

	metrics := monitor.NewMetrics()
	store := monitor.NewSessionStore(initial, metrics)
	t := tuner.NewTuner(runner.NewRetryRunnerFromConfig(proc, cfg.Retry), reader,
		cfg.Search.MaxTries, cfg.Search.OuterIterations).
		WithObserver(store)

	var j *journal.Journal
	if cfg.Journal != nil && cfg.Journal.Path != "" {
		j, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.StartSession(ctx, store.ID(), initial); err != nil {
			return err
		}
		t.WithObserver(j.Observer(store.ID()))
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServers := context.WithCancel(gctx)
	defer stopServers()
	if err := startMonitor(srvCtx, g, cfg.Monitor, store, metrics); err != nil {
		stopServers()
		_ = g.Wait()
		return err
	}

	logger.Info("search started", "session", store.ID(), "initial", initial.String(),
		"max_tries", cfg.Search.MaxTries, "outer_iterations", cfg.Search.OuterIterations)

	var (
		report    *tuner.Report
		searchErr error
	)
	g.Go(func() error {
		defer stopServers()
		store.Start()
		report, searchErr = t.Search(gctx, initial)
		store.Finish(searchErr)
		return nil
	})
	serveErr := g.Wait()

	if j != nil {
		if err := j.FinishSession(context.Background(), store.ID(), searchErr); err != nil {
			logger.Warn("failed to finish journal session", "session", store.ID(), "error", err)
		}
	}
	if report != nil {
		for _, ls := range report.LevelStats() {
			logger.Info("level summary",
				"levels", ls.Levels,
				"trials", ls.Time.N,
				"min", utils.FormatNanos(ls.Time.Min),
				"median", utils.FormatNanos(ls.Time.Median),
				"max", utils.FormatNanos(ls.Time.Max))
		}
		if _, err := report.WriteTo(out); err != nil {
			logger.Warn("failed to write report", "error", err)
		}
	}

	if serveErr != nil {
		return fmt.Errorf("monitor failed: %w", serveErr)
	}
	if searchErr != nil {
		return fmt.Errorf("search failed after %d runs: %w", t.Runs(), searchErr)
	}
	logger.Info("search completed", "session", store.ID(), "runs", t.Runs())
	return nil
}

// startMonitor binds the configured listeners and serves them in g until
// ctx is done. Binding happens up front so address errors abort the run.
func startMonitor(ctx context.Context, g *errgroup.Group, cfg *config.Monitor, store *monitor.SessionStore, metrics *monitor.Metrics) error {
	if cfg == nil {
		return nil
	}

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		srv := grpc.NewServer()
		monitor.RegisterMonitorServer(srv, monitor.NewGRPCServer(store))
		monitor.RegisterHealth(srv, store)

		g.Go(func() error {
			logger.Info("gRPC server listening", "addr", lis.Addr().String())
			return srv.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			srv.GracefulStop()
			return nil
		})
	}

	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for HTTP on %s: %w", cfg.HTTPAddr, err)
		}
		srv := &http.Server{
			Handler:           monitor.NewHTTPServer(store, metrics).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}

		g.Go(func() error {
			logger.Info("HTTP server listening", "addr", lis.Addr().String())
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return nil
}
