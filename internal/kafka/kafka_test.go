package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader replays msgs then blocks until ctx is done.
type fakeReader struct {
	mu         sync.Mutex
	msgs       []kafka.Message
	committed  []kafka.Message
	commitErrs []error
	closed     bool

	// blockCommit makes commits wait for their context
	blockCommit bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.blockCommit {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		r.commitErrs = append(r.commitErrs, ctx.Err())
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) failedCommits() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.commitErrs...)
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakePrimer struct {
	mu     sync.Mutex
	primed [][]models.Product
	latest time.Time
}

func (p *fakePrimer) Prime(products []models.Product, at time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !at.After(p.latest) {
		return false
	}
	p.latest = at
	p.primed = append(p.primed, products)
	return true
}

func TestPublisher(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := newPublisher(w, "node-a")
	p.now = func() time.Time { return at }

	require.NoError(t, p.Publish(t.Context(), []models.Product{{ID: 1, Title: "iPhone 9"}}))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "catalog", string(msg.Key))
	assert.Equal(t, Origin("node-a"), originOf(msg))

	var snapshot models.CatalogSnapshot
	require.NoError(t, json.Unmarshal(msg.Value, &snapshot))
	assert.Equal(t, 1, snapshot.Count)
	assert.True(t, at.Equal(snapshot.PublishedAt))

	w.err = errors.New("broker down")
	assert.ErrorContains(t, p.Publish(t.Context(), nil), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func snapshotMessage(t *testing.T, origin Origin, at time.Time, products ...models.Product) kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.NewCatalogSnapshot(products, at))
	require.NoError(t, err)
	return kafka.Message{
		Topic:   "storefront.catalog",
		Key:     []byte(snapshotKey),
		Value:   value,
		Headers: []kafka.Header{{Key: originHeader, Value: []byte(origin)}},
		Time:    at,
	}
}

func TestConsumerPrimesFromPeers(t *testing.T) {
	t.Parallel()
	at := time.Now()
	reader := &fakeReader{msgs: []kafka.Message{
		snapshotMessage(t, "node-a", at, models.Product{ID: 1}),
		snapshotMessage(t, "node-b", at.Add(time.Second), models.Product{ID: 2}, models.Product{ID: 3}),
		snapshotMessage(t, "node-b", at.Add(-time.Second), models.Product{ID: 4}),
		{Topic: "storefront.catalog", Value: []byte("{broken")},
	}}
	primer := &fakePrimer{}
	cfg := &config.KafkaConfig{Topic: "storefront.catalog", GroupID: "test"}
	c, err := newSnapshotConsumer(reader, cfg, "node-a", primer)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return reader.committedCount() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	primer.mu.Lock()
	defer primer.mu.Unlock()
	require.Len(t, primer.primed, 1, "own and stale snapshots are skipped")
	assert.Len(t, primer.primed[0], 2)
}

func TestConsumerBoundsEachMessage(t *testing.T) {
	t.Parallel()
	at := time.Now()
	reader := &fakeReader{
		blockCommit: true,
		msgs: []kafka.Message{
			snapshotMessage(t, "node-b", at, models.Product{ID: 1}),
			snapshotMessage(t, "node-b", at.Add(time.Second), models.Product{ID: 2}),
		},
	}
	primer := &fakePrimer{}
	cfg := &config.KafkaConfig{Topic: "storefront.catalog", GroupID: "test", ConsumeTimeout: 20 * time.Millisecond}
	c, err := newSnapshotConsumer(reader, cfg, "node-a", primer)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, c.consumeTimeout)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	// a hung commit gives up after the timeout and the next message is read
	require.Eventually(t, func() bool { return len(reader.failedCommits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	for _, err := range reader.failedCommits() {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	primer.mu.Lock()
	defer primer.mu.Unlock()
	assert.Len(t, primer.primed, 2)
}

func TestHandleSkipsExpiredMessage(t *testing.T) {
	t.Parallel()
	primer := &fakePrimer{}
	c, err := newSnapshotConsumer(&fakeReader{}, &config.KafkaConfig{Topic: "t"}, "node-a", primer)
	require.NoError(t, err)
	assert.Equal(t, defaultConsumeTimeout, c.consumeTimeout)

	ctx, cancel := context.WithTimeout(t.Context(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	status, err := c.handle(ctx, snapshotMessage(t, "node-b", time.Now(), models.Product{ID: 1}))
	assert.Equal(t, "timeout", status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, primer.primed)
}

func TestConsumerStop(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{}
	c, err := newSnapshotConsumer(reader, &config.KafkaConfig{Topic: "t"}, "a", &fakePrimer{})
	require.NoError(t, err)
	require.NoError(t, c.Stop(t.Context()))
	assert.True(t, reader.closed)
	assert.NoError(t, c.Start(t.Context()))
}

func TestNewConsumerDisabled(t *testing.T) {
	t.Parallel()
	c, err := NewConsumer(&config.KafkaConfig{}, NewOrigin(), &fakePrimer{})
	require.NoError(t, err)
	assert.IsType(t, &noopConsumer{}, c)
	assert.NoError(t, c.Start(t.Context()))
	assert.NoError(t, c.Stop(t.Context()))
}
