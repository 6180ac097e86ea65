package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotePage = `<html><body>
<div class="mb-1"><h1>Apple Inc (AAPL)</h1></div>
<div data-test="instrument-price-last">189.84</div>
<span class="empty"></span>
<span hidden data-test="secret">42</span>
<div style="display: none"><span class="inner">nope</span></div>
<img data-test="logo" src="/logo.png">
<button>Accept all</button>
</body></html>`

func newQuoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(quotePage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func openHTTPSession(t *testing.T) Session {
	t.Helper()
	e := NewHTTPEngine()
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, e.Start(context.Background()))
	s, err := e.Open(context.Background(), SessionOptions{UserAgent: "test-agent", Locale: "en-US"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHTTPEngine_QueryAndWait(t *testing.T) {
	srv := newQuoteServer(t)
	s := openHTTPSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/quote", 5*time.Second))

	require.NoError(t, s.WaitVisible(ctx, "[data-test='instrument-price-last']", time.Second))
	el, err := s.Query(ctx, "[data-test='instrument-price-last']")
	require.NoError(t, err)
	text, err := el.Text()
	require.NoError(t, err)
	assert.Equal(t, "189.84", text)

	logo, err := s.Query(ctx, "img[data-test='logo']")
	require.NoError(t, err)
	src, err := logo.Attribute("src")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "/logo.png", *src)

	alt, err := logo.Attribute("alt")
	require.NoError(t, err)
	assert.Nil(t, alt)

	assert.ErrorIs(t, s.WaitVisible(ctx, "[data-test='secret']", time.Second), ErrNotFound)
	assert.ErrorIs(t, s.WaitVisible(ctx, "span.inner", time.Second), ErrNotFound)
	assert.ErrorIs(t, s.WaitVisible(ctx, "table", time.Second), ErrNotFound)

	_, err = s.Query(ctx, "table")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPEngine_ClickText(t *testing.T) {
	srv := newQuoteServer(t)
	s := openHTTPSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/quote", 5*time.Second))
	assert.NoError(t, s.ClickText(ctx, "button", "Accept", time.Second))
	assert.ErrorIs(t, s.ClickText(ctx, "button", "Aceptar", time.Second), ErrNotFound)
}

func TestHTTPEngine_NavigationErrors(t *testing.T) {
	srv := newQuoteServer(t)
	s := openHTTPSession(t)
	ctx := context.Background()

	assert.Error(t, s.Navigate(ctx, srv.URL+"/missing", 5*time.Second))
	assert.Error(t, s.Navigate(ctx, srv.URL+"/json", 5*time.Second))
	assert.Error(t, s.Navigate(ctx, "http://invalid.invalid", 5*time.Second))

	// Nothing loaded yet, so every lookup misses.
	_, err := s.Query(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPEngine_ClosedSessionDropsDocument(t *testing.T) {
	srv := newQuoteServer(t)
	s := openHTTPSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/quote", 5*time.Second))
	require.NoError(t, s.Close())

	_, err := s.Query(ctx, "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}
