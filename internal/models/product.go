package models

import "time"

// Product is a catalog entry as served by the product source.
type Product struct {
	ID                 int      `json:"id" bson:"product_id"`
	Title              string   `json:"title" bson:"title"`
	Description        string   `json:"description,omitempty" bson:"description,omitempty"`
	Price              float64  `json:"price" bson:"price"`
	DiscountPercentage float64  `json:"discountPercentage,omitempty" bson:"discount_percentage,omitempty"`
	Rating             float64  `json:"rating,omitempty" bson:"rating,omitempty"`
	Stock              int      `json:"stock,omitempty" bson:"stock,omitempty"`
	Brand              string   `json:"brand,omitempty" bson:"brand,omitempty"`
	Category           string   `json:"category,omitempty" bson:"category,omitempty"`
	Thumbnail          string   `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Images             []string `json:"images" bson:"images"`
}

// CoverImage returns the first image, falling back to the thumbnail.
func (p Product) CoverImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return p.Thumbnail
}

// FindProduct returns the product with the given id.
func FindProduct(products []Product, id int) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// SearchResults is what the search feature hands to the listing page. A nil
// value means no search is active.
type SearchResults struct {
	Query    string    `json:"query" validate:"required"`
	Products []Product `json:"products"`
}

// CatalogSnapshot is the published form of a loaded catalog.
type CatalogSnapshot struct {
	Count       int       `json:"count" bson:"count"`
	Products    []Product `json:"products" bson:"products"`
	PublishedAt time.Time `json:"published_at" bson:"published_at"`
}

func NewCatalogSnapshot(products []Product, at time.Time) CatalogSnapshot {
	return CatalogSnapshot{
		Count:       len(products),
		Products:    products,
		PublishedAt: at,
	}
}
