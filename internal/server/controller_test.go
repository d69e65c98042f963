package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentranbao-ct/storefront/internal/catalog"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/listing"
	"github.com/nguyentranbao-ct/storefront/internal/render"
	"github.com/nguyentranbao-ct/storefront/internal/repo/memory"
	"github.com/nguyentranbao-ct/storefront/internal/session"
)

func productsBody(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"id":%d,"title":"Product %d","price":%d,"images":["https://img.example/%d.jpg"]}`, i+1, i+1, 10*(i+1), i+1)
	}
	return `{"products":[` + strings.Join(items, ",") + `]}`
}

type testEnv struct {
	e        *echo.Echo
	sessions *session.Registry
	hub      *Hub
	failing  *atomic.Bool
	fetches  *atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	failing := &atomic.Bool{}
	fetches := &atomic.Int32{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productsBody(20)))
	}))
	t.Cleanup(upstream.Close)

	conf := &config.Config{
		Catalog: config.CatalogConfig{URL: upstream.URL, Timeout: 2 * time.Second, CacheTTL: time.Minute},
		Listing: config.ListingConfig{Breakpoint: 768, WideSize: 16, NarrowSize: 8, DefaultWidth: 1024},
		Session: config.SessionConfig{CookieName: "sid", IdleTTL: time.Minute},
	}
	loader, err := catalog.NewLoader(conf, catalog.NewClient(conf))
	require.NoError(t, err)
	search := memory.NewSearchStore()
	hub := NewHub()
	t.Cleanup(hub.Close)
	sessions, err := session.NewRegistry(conf, loader, memory.NewCatalogStore(), search,
		session.WithReleaseHook(hub.Drop))
	require.NoError(t, err)
	t.Cleanup(sessions.Close)
	renderer, err := render.NewRenderer()
	require.NoError(t, err)

	handler := NewHandler(conf, sessions, renderer, loader, search, hub)
	return &testEnv{e: NewEcho(conf, handler), sessions: sessions, hub: hub, failing: failing, fetches: fetches}
}

type call struct {
	method string
	path   string
	body   string
	cookie *http.Cookie
	header map[string]string
}

func (env *testEnv) do(c call) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

var jsonAccept = map[string]string{echo.HeaderAccept: echo.MIMEApplicationJSON}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) listing.ViewModel {
	t.Helper()
	var body struct {
		Success bool              `json:"success"`
		Data    listing.ViewModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.True(t, body.Success)
	return body.Data
}

func TestIndex(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(call{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	out := rec.Body.String()
	assert.Equal(t, 16, strings.Count(out, `class="productdiv"`))
	assert.Contains(t, out, `data-width="1024"`)
	assert.Contains(t, out, `data-session="`+cookie.Value+`"`)
	assert.Equal(t, 1, env.sessions.Len())

	rec = env.do(call{method: http.MethodGet, path: "/", cookie: cookie, header: map[string]string{"X-Viewport-Width": "600"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, strings.Count(rec.Body.String(), `class="productdiv"`))
	assert.Equal(t, 3, strings.Count(rec.Body.String(), `data-action="goto"`))
	assert.Equal(t, 1, env.sessions.Len())
	assert.Equal(t, int32(1), env.fetches.Load(), "resize must not refetch")

	rec = env.do(call{method: http.MethodGet, path: "/?width=abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(call{method: http.MethodGet, path: "/"}))

	rec := env.do(call{method: http.MethodPost, path: "/page/next", cookie: cookie})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	rec = env.do(call{method: http.MethodGet, path: "/", cookie: cookie})
	out := rec.Body.String()
	assert.Equal(t, 4, strings.Count(out, `class="productdiv"`))
	assert.Contains(t, out, `href="/products/17"`)

	rec = env.do(call{method: http.MethodPost, path: "/page/next", cookie: cookie, header: jsonAccept})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeView(t, rec).ActivePage, "next on the last page is a no-op")

	rec = env.do(call{method: http.MethodPost, path: "/page/previous", cookie: cookie, header: jsonAccept})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeView(t, rec).ActivePage)

	t.Run("goto", func(t *testing.T) {
		rec := env.do(call{method: http.MethodPost, path: "/page/2", cookie: cookie, header: jsonAccept})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decodeView(t, rec).ActivePage)

		rec = env.do(call{method: http.MethodPost, path: "/page/5", cookie: cookie, header: jsonAccept})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(call{method: http.MethodPost, path: "/page/5", cookie: cookie})
		assert.Equal(t, http.StatusSeeOther, rec.Code, "browsers are sent back to the unchanged page")

		rec = env.do(call{method: http.MethodPost, path: "/page/0", cookie: cookie})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(call{method: http.MethodGet, path: "/api/v1/listing", cookie: cookie})
		assert.Equal(t, 2, decodeView(t, rec).ActivePage)
	})
}

func TestViewport(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(call{method: http.MethodGet, path: "/"}))

	rec := env.do(call{method: http.MethodPost, path: "/viewport", body: `{"width":600}`, cookie: cookie, header: jsonAccept})
	require.Equal(t, http.StatusOK, rec.Code)
	vm := decodeView(t, rec)
	assert.Equal(t, 8, vm.PageSize)
	assert.Equal(t, 3, vm.TotalPages)
	assert.Equal(t, 600, vm.Width)
	assert.Len(t, vm.Products, 8)

	rec = env.do(call{method: http.MethodPost, path: "/viewport", body: `{"width":-1}`, cookie: cookie})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// a missing width is rejected, not read as a narrow viewport
	rec = env.do(call{method: http.MethodPost, path: "/viewport", body: `{}`, cookie: cookie, header: jsonAccept})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "width is required")
	rec = env.do(call{method: http.MethodGet, path: "/api/v1/listing", cookie: cookie})
	assert.Equal(t, 8, decodeView(t, rec).PageSize)
	rec = env.do(call{method: http.MethodPost, path: "/viewport", body: `{"width":1280}`, cookie: cookie, header: jsonAccept})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(call{method: http.MethodPost, path: "/viewport", cookie: cookie})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(call{method: http.MethodGet, path: "/api/v1/listing", cookie: cookie})
	assert.Equal(t, 16, decodeView(t, rec).PageSize)

	rec = env.do(call{method: http.MethodPost, path: "/viewport", body: `{"width":1280}`, cookie: cookie})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.do(call{method: http.MethodGet, path: "/api/v1/listing", cookie: cookie})
	assert.Equal(t, 16, decodeView(t, rec).PageSize)
	assert.Equal(t, int32(1), env.fetches.Load())
}

func TestSearch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	cookie := sessionCookie(t, env.do(call{method: http.MethodGet, path: "/"}))

	rec := env.do(call{method: http.MethodPut, path: "/api/v1/search", cookie: cookie,
		body: `{"query":"phone","products":[{"id":3,"title":"Phone X","price":99}]}`})
	require.Equal(t, http.StatusOK, rec.Code)
	vm := decodeView(t, rec)
	require.NotNil(t, vm.Search)
	assert.Equal(t, "phone", vm.Search.Query)

	rec = env.do(call{method: http.MethodGet, path: "/", cookie: cookie})
	out := rec.Body.String()
	assert.Contains(t, out, `id="searchResults"`)
	assert.Contains(t, out, "Phone X")
	assert.NotContains(t, out, `id="allProducts"`)
	assert.NotContains(t, out, `class="numbers"`)

	rec = env.do(call{method: http.MethodPut, path: "/api/v1/search", cookie: cookie, body: `{"products":[]}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(call{method: http.MethodDelete, path: "/api/v1/search", cookie: cookie})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(call{method: http.MethodGet, path: "/", cookie: cookie})
	assert.Contains(t, rec.Body.String(), `id="allProducts"`)
}

func TestProduct(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(call{method: http.MethodGet, path: "/products/3"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Product 3</h1>")

	rec = env.do(call{method: http.MethodGet, path: "/products/999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(call{method: http.MethodGet, path: "/products/abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadFailureAndRetry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.failing.Store(true)

	rec := env.do(call{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	assert.Contains(t, rec.Body.String(), `data-kind="network"`)
	assert.Contains(t, rec.Body.String(), `action="/retry"`)

	rec = env.do(call{method: http.MethodPost, path: "/retry", cookie: cookie, header: jsonAccept})
	require.Equal(t, http.StatusOK, rec.Code)
	vm := decodeView(t, rec)
	require.NotNil(t, vm.Error)
	assert.True(t, vm.Error.Retryable)

	env.failing.Store(false)
	rec = env.do(call{method: http.MethodPost, path: "/retry", cookie: cookie})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(call{method: http.MethodGet, path: "/", cookie: cookie})
	assert.NotContains(t, rec.Body.String(), `data-kind=`)
	assert.Equal(t, 16, strings.Count(rec.Body.String(), `class="productdiv"`))
}

func TestHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	rec := env.do(call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func readEvent(t *testing.T, conn *websocket.Conn) serverEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev serverEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestSocket(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?width=1024"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "upgrade response carries the new session cookie")

	ev := readEvent(t, conn)
	require.Equal(t, eventRender, ev.Type)
	require.NotNil(t, ev.State)
	assert.Equal(t, 1, ev.State.ActivePage)
	assert.Contains(t, ev.HTML, `id="allProducts"`)

	require.NoError(t, conn.WriteJSON(clientEvent{Type: eventNext}))
	ev = readEvent(t, conn)
	assert.Equal(t, 2, ev.State.ActivePage)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","width":600}`)))
	ev = readEvent(t, conn)
	assert.Equal(t, 8, ev.State.PageSize)
	assert.Equal(t, 3, ev.State.TotalPages)

	require.NoError(t, conn.WriteJSON(clientEvent{Type: eventResize}))
	ev = readEvent(t, conn)
	assert.Equal(t, eventError, ev.Type)
	assert.Equal(t, "width is required", ev.Message)

	require.NoError(t, conn.WriteJSON(clientEvent{Type: eventGoTo, Page: 9}))
	ev = readEvent(t, conn)
	assert.Equal(t, eventError, ev.Type)
	assert.Contains(t, ev.Message, "out of range")

	require.NoError(t, conn.WriteJSON(clientEvent{Type: "dance"}))
	ev = readEvent(t, conn)
	assert.Equal(t, eventError, ev.Type)

	// a form post on the same session is pushed to the socket
	rec := env.do(call{method: http.MethodPost, path: "/page/1", cookie: cookie})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	ev = readEvent(t, conn)
	assert.Equal(t, eventRender, ev.Type)
	assert.Equal(t, 1, ev.State.ActivePage)
}
