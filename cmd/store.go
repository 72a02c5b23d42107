package cmd

import (
	"context"
	"fmt"

	"portfolio-gallery/internal/blob"
	"portfolio-gallery/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// openStore builds the configured blob store. The returned func releases
// any connection it holds.
func openStore(ctx context.Context, cfg *config.Config) (blob.Store, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory storage, photos are lost on restart")
		return blob.NewMemoryStore(), noop, nil

	case config.BackendLocal:
		store, err := blob.NewLocalStore(cfg.Storage.Local.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case config.BackendS3:
		s3cfg := cfg.Storage.S3
		store, err := blob.NewS3Store(ctx, blob.S3Options{
			Region:       s3cfg.Region,
			Bucket:       s3cfg.Bucket,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			Endpoint:     s3cfg.Endpoint,
			UsePathStyle: s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		return store, noop, nil

	case config.BackendPostgres:
		db, err := pgxpool.New(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		// Test database connection
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Msg("Database connection established")

		store, err := blob.NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
