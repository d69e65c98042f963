package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/storefront/internal/config"
)

const fixtureYAML = `
products:
  - id: 1
    title: Essence Mascara
    price: 9.99
    images: [https://img/1.jpg]
  - id: 2
    title: Eyeshadow Palette
    price: 19
    brand: Glamour
    images: []
`

func TestDecodeFixture(t *testing.T) {
	t.Parallel()

	products, err := DecodeFixture([]byte(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Essence Mascara", products[0].Title)
	assert.Equal(t, 9.99, products[0].Price)
	assert.Equal(t, "Glamour", products[1].Brand)

	tests := map[string]string{
		"not yaml":        "products: [",
		"missing field":   "items: []",
		"not an array":    "products: {id: 1}",
		"bad element":     "products: [{id: one}]",
		"null element":    "products: [~, {id: 1}]",
		"missing id":      "products: [{title: Lamp}]",
		"scalar document": "42",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFixture([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestFixtureClient(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	cfg := testConfig("http://unused.invalid")
	cfg.Catalog.Fixture = path
	products, err := NewClient(cfg).GetProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)

	missing := NewClient(&config.Config{Catalog: config.CatalogConfig{Fixture: path + ".gone"}})
	_, err = missing.GetProducts(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewClient(cfg).GetProducts(ctx)
	assert.ErrorIs(t, err, ErrNetwork)
}
