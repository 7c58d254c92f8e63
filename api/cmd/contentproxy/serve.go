package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"content-proxy/api/internal/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve every function over HTTP at /<function>",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return httpserver.Start(gctx, "0.0.0.0:"+cfg.Port, httpserver.Router(a.handle, a.db, logger), logger)
		})

		if a.db != nil {
			sched := cron.New()
			if _, err := sched.AddFunc(cfg.SweepSchedule, func() {
				if _, err := sweepExpired(gctx, a.db, logger); err != nil {
					logger.Error("subscription sweep", zap.Error(err))
				}
			}); err != nil {
				return err
			}
			sched.Start()
			logger.Info("subscription sweeper scheduled", zap.String("schedule", cfg.SweepSchedule))
			g.Go(func() error {
				<-gctx.Done()
				<-sched.Stop().Done()
				return nil
			})
		}

		err = g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
