package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"content-proxy/api/internal/metrics"
	"content-proxy/api/internal/store"
)

var errNoDatabase = errors.New("database is not configured: set DATABASE_URL or POSTGRES_* / PGHOST")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users, subscriptions, payments and generations tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := requireDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", store.Migrations()))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire subscriptions whose end date has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := requireDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		_, err = sweepExpired(cmd.Context(), db, logger)
		return err
	},
}

func requireDB(ctx context.Context) (*sql.DB, error) {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, errNoDatabase
	}
	return db, nil
}

func sweepExpired(ctx context.Context, db *sql.DB, log *zap.Logger) (int64, error) {
	n, err := store.NewSubscriptionRepo(db).ExpireOverdue(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	metrics.RecordSubscriptionsExpired(n)
	log.Info("subscriptions expired", zap.Int64("count", n))
	return n, nil
}
