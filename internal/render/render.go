package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/tmplx"
)

//go:embed templates/*.html
var templates embed.FS

type Renderer interface {
	// Page renders the full document for a listing.
	Page(vm listing.ViewModel) (*bytes.Buffer, error)
	// Listing renders only the grid or search view plus the controls.
	Listing(vm listing.ViewModel) (*bytes.Buffer, error)
	Product(p models.Product) (*bytes.Buffer, error)
}

type renderer struct {
	tmpl *tmplx.Set
}

// NewRenderer parses the embedded templates and renders each entry point
// once so a broken template fails at startup.
func NewRenderer() (Renderer, error) {
	tmpl, err := tmplx.ParseFS(templates, []string{"templates/*.html"},
		tmplx.WithCheck("page", listing.ViewModel{SessionID: "sample"}, expect(`data-session="sample"`)),
		tmplx.WithCheck("listing", listing.ViewModel{}, expect("No products available.")),
		tmplx.WithCheck("product", models.Product{Title: "sample"}, expect("<h1>sample</h1>")),
	)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &renderer{tmpl: tmpl}, nil
}

func expect(fragment string) tmplx.CheckFunc {
	return func(buf *bytes.Buffer) error {
		if !strings.Contains(buf.String(), fragment) {
			return fmt.Errorf("output is missing %q", fragment)
		}
		return nil
	}
}

func (r *renderer) Page(vm listing.ViewModel) (*bytes.Buffer, error) {
	return r.tmpl.Render("page", vm)
}

func (r *renderer) Listing(vm listing.ViewModel) (*bytes.Buffer, error) {
	return r.tmpl.Render("listing", vm)
}

func (r *renderer) Product(p models.Product) (*bytes.Buffer, error) {
	return r.tmpl.Render("product", p)
}
