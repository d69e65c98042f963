package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// fixtureClient serves the catalog from a local YAML file shaped like the
// remote body. The file is read on every call so edits show up after the
// cache TTL.
type fixtureClient struct {
	path string
}

func (f *fixtureClient) GetProducts(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read fixture: %w", ErrNetwork, err)
	}
	return DecodeFixture(raw)
}

// DecodeFixture converts a YAML catalog to JSON and decodes it with the same
// rules as a remote response.
func DecodeFixture(raw []byte) ([]models.Product, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse fixture: %w", ErrMalformedResponse, err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: convert fixture: %w", ErrMalformedResponse, err)
	}
	return DecodeProducts(body)
}
