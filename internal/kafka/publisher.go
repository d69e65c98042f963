package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
)

const (
	snapshotKey  = "catalog"
	originHeader = "origin"
)

// Origin identifies this process on the snapshot topic.
type Origin string

func NewOrigin() Origin {
	return Origin(uuid.NewString())
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes every loaded catalog to the snapshot topic.
type Publisher struct {
	writer messageWriter
	origin Origin
	now    func() time.Time
}

func NewPublisher(cfg *config.KafkaConfig, origin Origin) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, origin)
}

func newPublisher(w messageWriter, origin Origin) *Publisher {
	return &Publisher{writer: w, origin: origin, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, products []models.Product) error {
	value, err := json.Marshal(models.NewCatalogSnapshot(products, p.now()))
	if err != nil {
		return fmt.Errorf("marshal catalog snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(snapshotKey),
		Value:   value,
		Headers: []kafka.Header{{Key: originHeader, Value: []byte(p.origin)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write catalog snapshot: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func originOf(msg kafka.Message) Origin {
	for _, h := range msg.Headers {
		if h.Key == originHeader {
			return Origin(h.Value)
		}
	}
	return ""
}
