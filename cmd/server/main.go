package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ogurasousui/worktime/internal/adapters/grpc/handler"
	"github.com/ogurasousui/worktime/internal/core/idle"
	"github.com/ogurasousui/worktime/internal/core/report"
	"github.com/ogurasousui/worktime/internal/core/session"
	"github.com/ogurasousui/worktime/internal/platform/config"
	"github.com/ogurasousui/worktime/internal/platform/logging"
	"github.com/ogurasousui/worktime/internal/platform/server"
	"github.com/ogurasousui/worktime/internal/platform/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath    string
	localEmployee string
	idleCommand   string
	idleUnit      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Run the worktime gRPC server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	cmd.Flags().StringVar(&opts.localEmployee, "local-employee", "", "sample the idle clock of this machine for the given employee")
	cmd.Flags().StringVar(&opts.idleCommand, "idle-command", "", "command printing the idle time of this machine (required with --local-employee)")
	cmd.Flags().StringVar(&opts.idleUnit, "idle-unit", string(idle.UnitMilliseconds), "unit printed by --idle-command (ms or s)")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.PathFromEnv()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	sessionSvc := session.NewService(st.Sessions, nil, st.Tx,
		session.WithLogger(log),
		session.WithIdleThreshold(cfg.Idle.Threshold),
	)
	reportSvc := report.NewService(st.Sessions, st.Tx)
	grpcServer := server.New(cfg.Server.ListenAddr, handler.NewTimeTrackingGrpcHandler(sessionSvc, reportSvc), log)

	var sampler *idle.Sampler
	if opts.localEmployee != "" {
		source, err := idle.NewCommandSource(strings.Fields(opts.idleCommand), idle.Unit(opts.idleUnit))
		if err != nil {
			return fmt.Errorf("idle source: %w", err)
		}
		sampler, err = idle.NewSampler(source, sessionSvc, idle.Config{
			EmployeeID: opts.localEmployee,
			Interval:   cfg.Idle.SampleInterval,
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("idle sampler: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Run(gctx)
	})
	if sampler != nil {
		g.Go(func() error {
			return sampler.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	return nil
}
