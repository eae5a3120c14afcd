package main

import (
	"context"
	"fmt"

	"github.com/example/ticket-storefront/internal/config"
	"github.com/example/ticket-storefront/internal/infrastructure/store"
	"github.com/sirupsen/logrus"
)

// openMarkerStore returns the configured marker backend and a cleanup
// func that releases it.
func openMarkerStore(ctx context.Context, cfg config.MarkerConfig, logger logrus.FieldLogger) (store.MarkerStore, func(), error) {
	log := logger.WithField("marker_backend", cfg.Backend)
	noop := func() {}

	switch cfg.Backend {
	case config.MarkerBackendMemory:
		log.Warn("hold markers will not survive this process")
		return store.NewMemoryStore(), noop, nil

	case config.MarkerBackendFile:
		log.WithField("path", cfg.File).Debug("using marker file")
		return store.NewFileStore(cfg.File), noop, nil

	case config.MarkerBackendPostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		markers := store.NewPostgresStore(db)
		if err := markers.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Debug("connected to PostgreSQL")
		return markers, func() { db.Close() }, nil

	case config.MarkerBackendDynamoDB:
		client, err := store.NewDynamoClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("table", cfg.Table).Debug("using DynamoDB marker table")
		return store.NewDynamoStore(client, cfg.Table), noop, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
}
