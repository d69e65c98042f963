package server

import (
	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// Width is a pointer so an absent width is rejected instead of read as 0.
type viewportRequest struct {
	Width *int `json:"width" form:"width" header:"x-viewport-width" validate:"required,viewport"`
}

type pageRequest struct {
	Number int `param:"number" validate:"min=1"`
}

type productRequest struct {
	ID int `param:"id" validate:"min=1"`
}

type searchRequest struct {
	Query    string           `json:"query" validate:"required"`
	Products []models.Product `json:"products"`
}

type emptyRequest struct{}

// Client events on /ws.
const (
	eventResize   = "resize"
	eventNext     = "next"
	eventPrevious = "previous"
	eventGoTo     = "goto"
	eventRetry    = "retry"

	eventRender = "render"
	eventError  = "error"
)

type clientEvent struct {
	Type  string `json:"type"`
	Width *int   `json:"width,omitempty"`
	Page  int    `json:"page,omitempty"`
}

type serverEvent struct {
	Type    string             `json:"type"`
	HTML    string             `json:"html,omitempty"`
	State   *listing.ViewModel `json:"state,omitempty"`
	Message string             `json:"message,omitempty"`
}
