package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/kafka"
	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/fanout"
	"github.com/nguyentranbao-ct/storefront/internal/repo/memory"
	"github.com/nguyentranbao-ct/storefront/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/storefront/internal/repo/redis"
	"github.com/nguyentranbao-ct/storefront/internal/server"
	"github.com/nguyentranbao-ct/storefront/internal/session"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverKafka  = "kafka"
	DriverRedis  = "redis"
)

func asSource(l *catalog.Loader) catalog.Source { return l }
func asProductLookup(l *catalog.Loader) server.ProductLookup { return l }
func asPrimer(l *catalog.Loader) kafka.Primer { return l }

func newKafkaConfig(cfg *config.Config) *config.KafkaConfig { return &cfg.Kafka }

// newCatalogStore builds every configured catalog store; several drivers
// are published to concurrently.
func newCatalogStore(lc fx.Lifecycle, cfg *config.Config, origin kafka.Origin, loader *catalog.Loader) (listing.CatalogStore, error) {
	var stores []fanout.Named
	for _, driver := range cfg.Store.Catalog {
		switch driver {
		case DriverMemory:
			stores = append(stores, fanout.Named{Name: driver, Store: memory.NewCatalogStore()})
		case DriverMongo:
			db, err := newMongoDB(lc, cfg)
			if err != nil {
				return nil, err
			}
			repo := mongodb.NewCatalogSnapshotRepository(db, cfg.Database.Collection)
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					primeFromSnapshot(ctx, repo, loader)
					return nil
				},
			})
			stores = append(stores, fanout.Named{Name: driver, Store: repo})
		case DriverKafka:
			publisher := kafka.NewPublisher(&cfg.Kafka, origin)
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return publisher.Close()
				},
			})
			stores = append(stores, fanout.Named{Name: driver, Store: publisher})
		default:
			return nil, fmt.Errorf("unknown catalog store driver %q", driver)
		}
	}

	switch len(stores) {
	case 0:
		return nil, fmt.Errorf("no catalog store configured")
	case 1:
		return stores[0].Store, nil
	default:
		return fanout.NewCatalogStore(stores...), nil
	}
}

type snapshotReader interface {
	GetLatest(ctx context.Context) (*models.CatalogSnapshot, error)
}

// primeFromSnapshot warms the loader with the last stored catalog. A snapshot
// older than the cache TTL is installed but still refetched on first use.
func primeFromSnapshot(ctx context.Context, repo snapshotReader, primer kafka.Primer) bool {
	snapshot, err := repo.GetLatest(ctx)
	if errors.Is(err, models.ErrNotFound) {
		log.Debugw(ctx, "no stored catalog snapshot")
		return false
	}
	if err != nil {
		log.Warnw(ctx, "load stored catalog snapshot", "error", err)
		return false
	}
	primed := primer.Prime(snapshot.Products, snapshot.PublishedAt)
	log.Infow(ctx, "catalog primed from stored snapshot", "count", snapshot.Count, "published_at", snapshot.PublishedAt, "primed", primed)
	return primed
}

func newSearchStore(lc fx.Lifecycle, cfg *config.Config) (listing.SearchStore, error) {
	switch cfg.Store.Search {
	case DriverMemory:
		return memory.NewSearchStore(), nil
	case DriverRedis:
		rdb, err := newRedis(lc, cfg)
		if err != nil {
			return nil, err
		}
		return redis.NewSearchStore(rdb,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		), nil
	default:
		return nil, fmt.Errorf("unknown search store driver %q", cfg.Store.Search)
	}
}

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := mongodb.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init mongo client: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Ping(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close(ctx)
		},
	})
	return db, nil
}

func newRedis(lc fx.Lifecycle, cfg *config.Config) (*goredis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return rdb, nil
}

// newSessionRegistry releases a session's sockets and search results
// together with its page.
func newSessionRegistry(
	lc fx.Lifecycle,
	cfg *config.Config,
	source catalog.Source,
	store listing.CatalogStore,
	search listing.SearchStore,
	hub *server.Hub,
) (*session.Registry, error) {
	registry, err := session.NewRegistry(cfg, source, store, search,
		session.WithReleaseHook(hub.Drop),
		session.WithReleaseHook(func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := search.ClearSearchResults(ctx, id); err != nil {
				log.Warnw(ctx, "clear search results of released session", "session_id", id, "error", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			registry.Start(context.WithoutCancel(ctx))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			registry.Close()
			return nil
		},
	})
	return registry, nil
}

// StartSnapshotConsumer runs the catalog snapshot consumer for the app lifetime.
func StartSnapshotConsumer(lc fx.Lifecycle, sd fx.Shutdowner, consumer kafka.Consumer) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Errorw(ctx, "catalog snapshot consumer stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return consumer.Stop(stopCtx)
		},
	})
}
