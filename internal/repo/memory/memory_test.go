package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

func TestCatalogStore(t *testing.T) {
	t.Parallel()
	s := NewCatalogStore()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return at }

	assert.Nil(t, s.snapshot)

	products := []models.Product{{ID: 1}, {ID: 2}}
	require.NoError(t, s.Publish(t.Context(), products))

	snap := s.snapshot
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, products, snap.Products)
	assert.Equal(t, at, snap.PublishedAt)
}

func TestSearchStore(t *testing.T) {
	t.Parallel()
	s := NewSearchStore()
	ctx := t.Context()

	got, err := s.SearchResults(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	results := &models.SearchResults{Query: "lamp", Products: []models.Product{{ID: 3}}}
	require.NoError(t, s.SetSearchResults(ctx, "a", results))

	got, err = s.SearchResults(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, results, got)

	got, err = s.SearchResults(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got, "results are scoped to a session")

	require.NoError(t, s.ClearSearchResults(ctx, "a"))
	got, err = s.SearchResults(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SetSearchResults(ctx, "a", results))
	require.NoError(t, s.SetSearchResults(ctx, "a", nil))
	got, _ = s.SearchResults(ctx, "a")
	assert.Nil(t, got)
}
