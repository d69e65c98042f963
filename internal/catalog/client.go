package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
)

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("catalog: network error")
	// ErrMalformedResponse covers bodies without a usable products array.
	ErrMalformedResponse = errors.New("catalog: malformed response")
)

type Client interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
}

type client struct {
	httpClient *resty.Client
	url        string
}

// NewClient returns the HTTP client for CATALOG_URL, or a fixture client
// when CATALOG_FIXTURE names a YAML file.
func NewClient(cfg *config.Config) Client {
	if cfg.Catalog.Fixture != "" {
		return &fixtureClient{path: cfg.Catalog.Fixture}
	}
	return &client{
		httpClient: util.NewRestyClient(util.RestyOptions{
			Retries:   cfg.Catalog.Retries,
			Timeout:   cfg.Catalog.Timeout,
			UserAgent: "storefront-catalog",
			Logger:    logger.MustNamed("catalog_http"),
		}),
		url: cfg.Catalog.URL,
	}
}

func (c *client) GetProducts(ctx context.Context) ([]models.Product, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: source returned status %d", ErrNetwork, resp.StatusCode())
	}

	return DecodeProducts(resp.Body())
}

// DecodeProducts extracts the products array from a `{"products": [...]}` body.
func DecodeProducts(body []byte) ([]models.Product, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid json", ErrMalformedResponse)
	}
	field := gjson.GetBytes(body, "products")
	if !field.Exists() {
		return nil, fmt.Errorf("%w: missing products field", ErrMalformedResponse)
	}
	if !field.IsArray() {
		return nil, fmt.Errorf("%w: products is %s, want array", ErrMalformedResponse, field.Type)
	}

	for i, el := range field.Array() {
		if !el.IsObject() {
			return nil, fmt.Errorf("%w: product %d is %s, want object", ErrMalformedResponse, i, el.Type)
		}
	}

	products := make([]models.Product, 0)
	if err := json.Unmarshal([]byte(field.Raw), &products); err != nil {
		return nil, fmt.Errorf("%w: decode products: %w", ErrMalformedResponse, err)
	}
	// ids address the detail page, so they must be positive
	for i, p := range products {
		if p.ID <= 0 {
			return nil, fmt.Errorf("%w: product %d has id %d", ErrMalformedResponse, i, p.ID)
		}
	}
	return products, nil
}
