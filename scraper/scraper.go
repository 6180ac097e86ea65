package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/quotegrab/cache"
	"github.com/use-agent/quotegrab/engine"
	"github.com/use-agent/quotegrab/extract"
	"github.com/use-agent/quotegrab/models"
)

// Options controls how a batch is driven.
type Options struct {
	// Concurrency caps simultaneously open sessions.
	Concurrency int // default: 10

	// NavigationTimeout bounds DOM-ready for one target.
	NavigationTimeout time.Duration // default: 30s

	// FieldTimeout is the per-strategy visibility wait.
	FieldTimeout time.Duration // default: 5s

	// TargetTimeout caps one target end to end. Zero disables it.
	TargetTimeout time.Duration

	// Session is applied to every session opened.
	Session engine.SessionOptions

	Plan       *extract.Plan
	Dismissals []Dismissal
}

// DefaultOptions returns the stock settings with the built-in quote plan.
func DefaultOptions() Options {
	return Options{
		Concurrency:       10,
		NavigationTimeout: 30 * time.Second,
		FieldTimeout:      extract.DefaultFieldTimeout,
		Session: engine.SessionOptions{
			UserAgent:      engine.DefaultUserAgent,
			Viewport:       engine.Viewport{Width: 1280, Height: 720},
			Locale:         "en-US",
			ScriptDisabled: true,
			Blocked:        engine.DefaultBlocked,
		},
		Plan:       extract.DefaultPlan,
		Dismissals: DefaultDismissals,
	}
}

// targetSlack covers the work between waits: queries, text reads, and
// the exchange-name lookups that do not wait.
const targetSlack = 5 * time.Second

// MinTargetTimeout is the worst-case time one target needs when the page
// loads but every waited selector misses. A target deadline below it
// would fail targets whose fields merely resolve to defaults.
func MinTargetTimeout(opts Options) time.Duration {
	d := opts.NavigationTimeout + targetSlack
	for _, dm := range opts.Dismissals {
		d += dm.Timeout
	}
	waits := 0
	for _, f := range opts.Plan.Fields() {
		if !f.NoWait {
			waits += len(f.Strategies)
		}
	}
	if ex := opts.Plan.ExchangeName(); !ex.NoWait {
		waits += len(ex.Strategies)
	}
	return d + time.Duration(waits)*opts.FieldTimeout
}

// Scraper runs batches of targets against an engine. It is safe for
// concurrent use; batches share the concurrency limiter.
type Scraper struct {
	engine    engine.Engine
	limiter   *engine.Limiter
	opts      Options
	extractor extract.Extractor
	cache     *cache.Cache
	startTime time.Time
}

// New builds a Scraper. Zero-valued options fall back to DefaultOptions.
// The engine is started lazily by the first Run.
func New(eng engine.Engine, opts Options) *Scraper {
	def := DefaultOptions()
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}
	if opts.FieldTimeout <= 0 {
		opts.FieldTimeout = def.FieldTimeout
	}
	if opts.Plan == nil {
		opts.Plan = def.Plan
	}
	if opts.Dismissals == nil {
		opts.Dismissals = def.Dismissals
	}
	if opts.TargetTimeout > 0 {
		if floor := MinTargetTimeout(opts); opts.TargetTimeout < floor {
			slog.Warn("target timeout too short for the selector plan, raising it",
				"configured", opts.TargetTimeout, "minimum", floor)
			opts.TargetTimeout = floor
		}
	}
	return &Scraper{
		engine:    eng,
		limiter:   engine.NewLimiter(opts.Concurrency),
		opts:      opts,
		extractor: extract.Extractor{FieldTimeout: opts.FieldTimeout},
		startTime: time.Now(),
	}
}

// SetCache enables result caching by URL. Pass nil to disable it.
func (s *Scraper) SetCache(c *cache.Cache) {
	s.cache = c
}

// Report is the outcome of one batch.
type Report struct {
	Results []models.ExtractionResult
	Total   time.Duration
	Average time.Duration
	OK      int
	Failed  int
}

// Timing converts the report counters for API responses.
func (r *Report) Timing() *models.BatchTiming {
	return &models.BatchTiming{
		TotalMs:   r.Total.Milliseconds(),
		AverageMs: r.Average.Milliseconds(),
		OK:        r.OK,
		Failed:    r.Failed,
	}
}

// Progress is called once per finished target with its input index.
// Calls may come from several goroutines at once.
type Progress func(index int, r models.ExtractionResult)

// Run extracts every target and returns one result per target in input
// order. Per-target failures become Failed results; the only error
// returned is an engine that cannot be started.
func (s *Scraper) Run(ctx context.Context, targets []models.ExtractionTarget, progress Progress) (*Report, error) {
	start := time.Now()
	if err := s.engine.Start(ctx); err != nil {
		return nil, categorizeError(err, models.ErrCodeEngineDown, "render engine unavailable")
	}

	results := make([]models.ExtractionResult, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(idx int, t models.ExtractionTarget) {
			defer wg.Done()
			results[idx] = s.runOne(ctx, t)
			if progress != nil {
				progress(idx, results[idx])
			}
		}(i, t)
	}
	wg.Wait()

	rep := &Report{Results: results, Total: time.Since(start)}
	for _, r := range results {
		if r.OK() {
			rep.OK++
		} else {
			rep.Failed++
		}
	}
	if len(results) > 0 {
		rep.Average = rep.Total / time.Duration(len(results))
	}

	slog.Info("batch complete",
		"total", len(results),
		"ok", rep.OK,
		"failed", rep.Failed,
		"duration_ms", rep.Total.Milliseconds(),
		"average_ms", rep.Average.Milliseconds(),
	)
	return rep, nil
}

// runOne serves t from the cache or waits for a limiter slot and runs it.
func (s *Scraper) runOne(ctx context.Context, t models.ExtractionTarget) models.ExtractionResult {
	if s.cache != nil {
		if r, ok := s.cache.Get(t.URL); ok {
			slog.Debug("cache hit", "name", t.Name, "url", t.URL)
			r.Name = t.Name
			r.DurationMs = 0
			return r
		}
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return models.FailedResult(t, categorizeError(err, models.ErrCodeTimeout, "waiting for a session slot"))
	}
	defer release()

	r := s.run(ctx, t)
	if s.cache != nil {
		s.cache.Set(t.URL, r)
	}
	return r
}

// Warm starts the engine ahead of the first batch.
func (s *Scraper) Warm(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return categorizeError(err, models.ErrCodeEngineDown, "render engine unavailable")
	}
	return nil
}

// Stats returns a snapshot of the concurrency limiter.
func (s *Scraper) Stats() models.LimiterStats {
	return s.limiter.Stats()
}

// EngineName reports which engine backs this scraper.
func (s *Scraper) EngineName() string {
	return s.engine.Name()
}

// Uptime is the time since New.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close shuts the engine down. Call it on graceful shutdown to avoid
// orphaned browser processes.
func (s *Scraper) Close() error {
	slog.Info("scraper shutting down: closing engine", "engine", s.engine.Name())
	if s.cache != nil {
		s.cache.Stop()
	}
	err := s.engine.Close()
	slog.Info("scraper shutdown complete")
	return err
}
