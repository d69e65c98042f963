package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/render"
	pkgmdw "github.com/nguyentranbao-ct/storefront/internal/server/middleware"
	"github.com/nguyentranbao-ct/storefront/internal/session"
	"github.com/nguyentranbao-ct/storefront/internal/viewport"
)

var errUnknownEvent = errors.New("unknown event")

type Controller interface {
	Health(c echo.Context) error
	Index(c echo.Context) error
	Viewport(c echo.Context) error
	Next(c echo.Context) error
	Previous(c echo.Context) error
	GoTo(c echo.Context) error
	Retry(c echo.Context) error
	Product(c echo.Context) error
	Socket(c echo.Context) error

	GetListing(c echo.Context, req emptyRequest) (*listing.ViewModel, error)
	PutSearch(c echo.Context, req searchRequest) (*listing.ViewModel, error)
	DeleteSearch(c echo.Context, req emptyRequest) error
}

// ProductLookup finds a single product in the catalog.
type ProductLookup interface {
	Lookup(ctx context.Context, id int) (models.Product, error)
}

type controller struct {
	conf     *config.Config
	sessions *session.Registry
	renderer render.Renderer
	products ProductLookup
	search   listing.SearchStore
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(
	conf *config.Config,
	sessions *session.Registry,
	renderer render.Renderer,
	products ProductLookup,
	search listing.SearchStore,
	hub *Hub,
) Controller {
	return &controller{
		conf:     conf,
		sessions: sessions,
		renderer: renderer,
		products: products,
		search:   search,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  "storefront",
		"sessions": h.sessions.Len(),
	})
}

// Index renders the listing page for the caller's session.
func (h *controller) Index(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	vm, err := sess.Page.View(c.Request().Context())
	if err != nil {
		return err
	}
	buf, err := h.renderer.Page(vm)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *controller) Viewport(c echo.Context) error {
	var req viewportRequest
	if err := pkgmdw.BindAndValidate(c, &req); err != nil {
		return err
	}
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return h.respond(c, sess, sess.Page.Resize(*req.Width))
}

func (h *controller) Next(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	_, err = sess.Page.Next()
	return h.respond(c, sess, err)
}

func (h *controller) Previous(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	_, err = sess.Page.Previous()
	return h.respond(c, sess, err)
}

func (h *controller) GoTo(c echo.Context) error {
	var req pageRequest
	if err := pkgmdw.BindAndValidate(c, &req); err != nil {
		return err
	}
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return h.respond(c, sess, sess.Page.GoTo(req.Number))
}

// Retry reloads the catalog. A failed load is not an HTTP error: the page
// keeps showing the failure with its retry control.
func (h *controller) Retry(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.Page.Retry(c.Request().Context()); err != nil && !isLoadError(err) {
		return h.respond(c, sess, err)
	}
	return h.respond(c, sess, nil)
}

func (h *controller) Product(c echo.Context) error {
	var req productRequest
	if err := pkgmdw.BindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.products.Lookup(c.Request().Context(), req.ID)
	if err != nil {
		return mapError(err)
	}
	buf, err := h.renderer.Product(p)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *controller) GetListing(c echo.Context, _ emptyRequest) (*listing.ViewModel, error) {
	sess, err := h.session(c)
	if err != nil {
		return nil, err
	}
	vm, err := sess.Page.View(c.Request().Context())
	if err != nil {
		return nil, mapError(err)
	}
	return &vm, nil
}

// PutSearch stores search results for the session; the grid is replaced by
// them until DeleteSearch.
func (h *controller) PutSearch(c echo.Context, req searchRequest) (*listing.ViewModel, error) {
	sess, err := h.session(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	results := &models.SearchResults{Query: req.Query, Products: req.Products}
	if results.Products == nil {
		results.Products = []models.Product{}
	}
	if err := h.search.SetSearchResults(ctx, sess.ID, results); err != nil {
		return nil, err
	}
	h.pushRender(ctx, sess)
	vm, err := sess.Page.View(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &vm, nil
}

func (h *controller) DeleteSearch(c echo.Context, _ emptyRequest) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.search.ClearSearchResults(ctx, sess.ID); err != nil {
		return err
	}
	h.pushRender(ctx, sess)
	return nil
}

// Socket upgrades to a websocket bound to the caller's session.
func (h *controller) Socket(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	// the session cookie, when just created, must ride on the upgrade response
	var header http.Header
	if cookies := c.Response().Header().Values(echo.HeaderSetCookie); len(cookies) > 0 {
		header = http.Header{echo.HeaderSetCookie: cookies}
	}
	conn, err := h.upgrader.Upgrade(c.Response().Writer, c.Request(), header)
	if err != nil {
		log.Warnw(c.Request().Context(), "websocket upgrade failed", "session_id", sess.ID, "error", err)
		return nil
	}

	ctx := context.WithoutCancel(c.Request().Context())
	client := newSocketClient(sess.ID, conn)
	h.hub.register(client)

	go client.writePump()
	go client.readPump(ctx, h.hub, func(ev clientEvent) {
		h.handleEvent(ctx, client, ev)
	})

	h.pushRender(ctx, sess)
	return nil
}

func (h *controller) handleEvent(ctx context.Context, client *socketClient, ev clientEvent) {
	sess, ok := h.sessions.Get(client.sessionID)
	if !ok {
		client.reply(h.hub, serverEvent{Type: eventError, Message: "session expired, reload the page"})
		return
	}

	var err error
	switch ev.Type {
	case eventResize:
		switch {
		case ev.Width == nil:
			err = errors.New("width is required")
		case *ev.Width < 0 || *ev.Width > pkgmdw.MaxViewportWidth:
			err = fmt.Errorf("invalid width %d", *ev.Width)
		default:
			err = sess.Page.Resize(*ev.Width)
		}
	case eventNext:
		_, err = sess.Page.Next()
	case eventPrevious:
		_, err = sess.Page.Previous()
	case eventGoTo:
		err = sess.Page.GoTo(ev.Page)
	case eventRetry:
		if err = sess.Page.Retry(ctx); isLoadError(err) {
			err = nil
		}
	default:
		err = fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}

	if err != nil {
		log.Debugw(ctx, "websocket event rejected", "session_id", sess.ID, "type", ev.Type, "error", err)
		client.reply(h.hub, serverEvent{Type: eventError, Message: err.Error()})
		return
	}
	h.pushRender(ctx, sess)
}

// session resolves the caller's session from the cookie, creating one when
// needed. A width from the X-Viewport-Width header or ?width= is applied.
func (h *controller) session(c echo.Context) (*session.Session, error) {
	width, hasWidth, err := requestWidth(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	initial := h.conf.Listing.DefaultWidth
	if hasWidth {
		initial = width
	}

	var id string
	if cookie, err := c.Cookie(h.conf.Session.CookieName); err == nil {
		id = cookie.Value
	}

	ctx := c.Request().Context()
	sess, created, err := h.sessions.GetOrCreate(ctx, id, initial)
	if err != nil {
		return nil, mapError(err)
	}
	if created {
		c.SetCookie(&http.Cookie{
			Name:     h.conf.Session.CookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	} else if hasWidth {
		if err := sess.Page.Resize(width); err != nil {
			return nil, mapError(err)
		}
	}
	c.Set(pkgmdw.SessionIDKey, sess.ID)
	return sess, nil
}

func requestWidth(c echo.Context) (int, bool, error) {
	raw := c.Request().Header.Get(pkgmdw.HeaderViewportWidth)
	if raw == "" {
		raw = c.QueryParam("width")
	}
	if raw == "" {
		return 0, false, nil
	}
	width, err := cast.ToIntE(raw)
	if err != nil || width < 0 || width > pkgmdw.MaxViewportWidth {
		return 0, false, fmt.Errorf("invalid viewport width %q", raw)
	}
	return width, true, nil
}

// respond finishes a page action: JSON callers get the new state, browsers
// are redirected back to the listing.
func (h *controller) respond(c echo.Context, sess *session.Session, actionErr error) error {
	ctx := c.Request().Context()
	if actionErr == nil {
		h.pushRender(ctx, sess)
	}

	if !wantsJSON(c) {
		if actionErr != nil && !errors.Is(actionErr, listing.ErrPageOutOfRange) {
			return mapError(actionErr)
		}
		return c.Redirect(http.StatusSeeOther, "/")
	}
	if actionErr != nil {
		return mapError(actionErr)
	}
	vm, err := sess.Page.View(ctx)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &pkgmdw.Response{Status: http.StatusOK, Success: true, Data: vm})
}

func (h *controller) pushRender(ctx context.Context, sess *session.Session) {
	if h.hub.Count(sess.ID) == 0 {
		return
	}
	payload, err := h.renderEvent(ctx, sess)
	if err != nil {
		log.Errorw(ctx, "render websocket update failed", "session_id", sess.ID, "error", err)
		return
	}
	h.hub.Push(sess.ID, payload)
}

func (h *controller) renderEvent(ctx context.Context, sess *session.Session) ([]byte, error) {
	vm, err := sess.Page.View(ctx)
	if err != nil {
		return nil, err
	}
	buf, err := h.renderer.Listing(vm)
	if err != nil {
		return nil, err
	}
	return json.Marshal(serverEvent{Type: eventRender, HTML: buf.String(), State: &vm})
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func isLoadError(err error) bool {
	return errors.Is(err, catalog.ErrNetwork) || errors.Is(err, catalog.ErrMalformedResponse)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, listing.ErrPageOutOfRange),
		errors.Is(err, viewport.ErrInvalidWidth):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, listing.ErrNotMounted),
		errors.Is(err, viewport.ErrClosed),
		errors.Is(err, session.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case isLoadError(err):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return err
}
