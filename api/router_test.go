package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/quotegrab/config"
	"github.com/use-agent/quotegrab/engine/enginetest"
	"github.com/use-agent/quotegrab/models"
	"github.com/use-agent/quotegrab/scraper"
	"github.com/use-agent/quotegrab/webhook"
)

const priceSelector = "[data-test='instrument-price-last']"

func newTestRouter(t *testing.T, eng *enginetest.Engine, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	if mutate != nil {
		mutate(cfg)
	}

	opts := scraper.DefaultOptions()
	opts.NavigationTimeout = time.Second
	opts.FieldTimeout = 10 * time.Millisecond
	sc := scraper.New(eng, opts)
	return NewRouter(sc, cfg)
}

func quoteEngine() *enginetest.Engine {
	return enginetest.New(map[string]*enginetest.Page{
		"https://quotes.test/aapl": {Nodes: map[string]enginetest.Node{priceSelector: {Text: "189.84"}}},
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuotes_ReturnsResultsInOrder(t *testing.T) {
	r := newTestRouter(t, quoteEngine(), nil)

	for _, path := range []string{"/api/v1/quotes", "/scrap"} {
		w := do(r, http.MethodPost, path, `[
			{"empresa": "Apple", "url": "https://quotes.test/aapl"},
			{"empresa": "Broken", "url": "http://invalid.invalid"}
		]`)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Batch-Duration-Ms"))
		assert.NotEmpty(t, w.Header().Get("X-Batch-Average-Ms"))

		var results []models.ExtractionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
		require.Len(t, results, 2)

		assert.Equal(t, "Apple", results[0].Name)
		assert.Equal(t, models.StatusOK, results[0].Status)
		assert.Equal(t, "189.84", results[0].Price)
		assert.Equal(t, models.NotAvailable, results[0].Currency)

		assert.Equal(t, "Broken", results[1].Name)
		assert.Equal(t, models.StatusFailed, results[1].Status)
		assert.Equal(t, models.ErrorValue, results[1].Price)
		assert.Equal(t, models.ErrCodeNavigation, results[1].ErrorCode)
	}
}

func TestQuotes_RejectsBadInput(t *testing.T) {
	r := newTestRouter(t, quoteEngine(), func(c *config.Config) { c.Scraper.MaxTargets = 2 })

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `[{"empresa":`},
		{"object", `{"empresa": "A", "url": "https://quotes.test/aapl"}`},
		{"empty", `[]`},
		{"missing url", `[{"empresa": "A"}]`},
		{"oversized", `[{"empresa":"a","url":"u"},{"empresa":"b","url":"u"},{"empresa":"c","url":"u"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/quotes", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
		})
	}
}

func TestQuotes_EngineUnavailable(t *testing.T) {
	eng := quoteEngine()
	eng.StartErr = assert.AnError
	r := newTestRouter(t, eng, nil)

	w := do(r, http.MethodPost, "/api/v1/quotes", `[{"empresa": "Apple", "url": "https://quotes.test/aapl"}]`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeEngineDown, resp.Error.Code)
}

func TestJobs_LifecycleAndWebhook(t *testing.T) {
	var mu sync.Mutex
	var event webhook.Event
	var signature string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		defer mu.Unlock()
		signature = req.Header.Get(webhook.SignatureHeader)
		_ = json.Unmarshal(body, &event)
		assert.Equal(t, webhook.Sign("hook-secret", body), signature)
	}))
	defer hook.Close()

	r := newTestRouter(t, quoteEngine(), func(c *config.Config) { c.Webhook.Secret = "hook-secret" })

	w := do(r, http.MethodPost, "/api/v1/jobs", `{
		"targets": [
			{"empresa": "Apple", "url": "https://quotes.test/aapl"},
			{"empresa": "Broken", "url": "http://invalid.invalid"}
		],
		"webhook_url": "`+hook.URL+`"
	}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var created models.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.JobProcessing, created.Status)
	assert.Equal(t, 2, created.Total)

	var status models.JobStatusResponse
	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/v1/jobs/"+created.ID, "")
		if w.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(w.Body.Bytes(), &status)
		return status.Status != models.JobProcessing
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.JobPartial, status.Status)
	assert.Equal(t, 2, status.Completed)
	require.Len(t, status.Results, 2)
	assert.Equal(t, "Apple", status.Results[0].Name)
	require.NotNil(t, status.Timing)
	assert.Equal(t, 1, status.Timing.OK)
	assert.Equal(t, 1, status.Timing.Failed)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return event.Type == webhook.EventBatchCompleted
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, created.ID, event.JobID)
	assert.Contains(t, signature, "sha256=")
	mu.Unlock()
}

func TestJobs_NotFound(t *testing.T) {
	r := newTestRouter(t, quoteEngine(), nil)
	w := do(r, http.MethodGet, "/api/v1/jobs/job-missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, quoteEngine(), func(c *config.Config) {
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 1
	})

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "fake", resp.Engine)
		assert.Equal(t, 10, resp.LimiterStats.Capacity)
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, quoteEngine(), func(c *config.Config) {
		c.RateLimit.RequestsPerSecond = 0.001
		c.RateLimit.Burst = 1
	})

	body := `[{"empresa": "Apple", "url": "https://quotes.test/aapl"}]`
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/quotes", body).Code)

	w := do(r, http.MethodPost, "/api/v1/quotes", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeRateLimited, resp.Error.Code)
}
