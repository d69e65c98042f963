package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Primer accepts catalogs published by other instances.
type Primer interface {
	Prime(products []models.Product, at time.Time) bool
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const defaultConsumeTimeout = 30 * time.Second

type snapshotConsumer struct {
	reader         messageReader
	topic          string
	groupID        string
	origin         Origin
	primer         Primer
	metrics        *prometheus.HistogramVec
	consumeTimeout time.Duration
	done           chan struct{}
}

// NewConsumer returns a noop consumer unless consuming is enabled.
func NewConsumer(cfg *config.KafkaConfig, origin Origin, primer Primer) (Consumer, error) {
	if !cfg.Consume {
		return &noopConsumer{}, nil
	}
	return newSnapshotConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
	}), cfg, origin, primer)
}

func newSnapshotConsumer(r messageReader, cfg *config.KafkaConfig, origin Origin, primer Primer) (*snapshotConsumer, error) {
	metrics, err := util.HistogramVec("kafka_messages_consumed", "Catalog snapshot handling latency by outcome", "status", "topic", "group")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}
	timeout := cfg.ConsumeTimeout
	if timeout <= 0 {
		timeout = defaultConsumeTimeout
	}
	return &snapshotConsumer{
		reader:         r,
		topic:          cfg.Topic,
		groupID:        cfg.GroupID,
		origin:         origin,
		primer:         primer,
		metrics:        metrics,
		consumeTimeout: timeout,
		done:           make(chan struct{}),
	}, nil
}

// Start blocks until ctx is canceled or Stop is called.
func (c *snapshotConsumer) Start(ctx context.Context) error {
	log.Infof(ctx, "Starting catalog snapshot consumer for topic: %s", c.topic)
	for ctx.Err() == nil {
		select {
		case <-c.done:
			return nil
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorw(ctx, "Error fetching message", "error", err)
			continue
		}

		msgCtx, cancel := context.WithTimeout(ctx, c.consumeTimeout)
		c.processMessage(msgCtx, msg)

		if err := c.reader.CommitMessages(msgCtx, msg); err != nil {
			log.Errorw(ctx, "Failed to commit message", "error", err, "offset", msg.Offset)
		}
		cancel()
	}
	return nil
}

func (c *snapshotConsumer) Stop(ctx context.Context) error {
	log.Infof(ctx, "Stopping catalog snapshot consumer")
	close(c.done)
	return c.reader.Close()
}

func (c *snapshotConsumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	lagMs := start.Sub(msg.Time).Milliseconds()

	status, err := c.handle(ctx, msg)
	duration := time.Since(start)

	content := status
	if err != nil {
		content = err.Error()
	}
	log.Logw(ctx, getLogLevel(status), content,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"lag_ms", lagMs,
		"key", string(msg.Key),
	)

	c.metrics.
		WithLabelValues(status, msg.Topic, c.groupID).
		Observe(duration.Seconds())
}

func (c *snapshotConsumer) handle(ctx context.Context, msg kafka.Message) (status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = "panic", fmt.Errorf("PANIC RECOVER: %+v", r)
		}
	}()

	// skip our own snapshots to avoid re-priming from our own fetches
	if originOf(msg) == c.origin {
		return "skipped", nil
	}

	var snapshot models.CatalogSnapshot
	if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
		return "invalid", fmt.Errorf("failed to unmarshal catalog snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "timeout", fmt.Errorf("catalog snapshot not applied: %w", err)
	}
	if !c.primer.Prime(snapshot.Products, snapshot.PublishedAt) {
		return "stale", nil
	}
	return "primed", nil
}

func getLogLevel(status string) logger.Level {
	switch status {
	case "primed", "skipped":
		return logger.InfoLevel
	case "stale", "invalid":
		return logger.WarnLevel
	default:
		return logger.ErrorLevel
	}
}

// noopConsumer is used when snapshot consuming is disabled
type noopConsumer struct{}

func (n *noopConsumer) Start(ctx context.Context) error {
	log.Infof(ctx, "Catalog snapshot consumer is disabled")
	return nil
}

func (n *noopConsumer) Stop(ctx context.Context) error {
	return nil
}
