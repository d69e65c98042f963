package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nguyentranbao-ct/storefront/internal/config"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewConnection builds a lazy client; the first operation or Ping dials.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Database == "" {
		return nil, errors.New("mongodb: database name is required")
	}
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("storefront").
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMaxConnIdleTime(30 * time.Second).
		SetTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &DB{
		Client:   client,
		Database: client.Database(cfg.Database),
	}, nil
}

// Ping checks that a primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}
