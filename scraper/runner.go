package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/quotegrab/engine"
	"github.com/use-agent/quotegrab/models"
)

// run drives one target through its whole lifecycle and always returns
// exactly one result. Nothing that happens here escapes to the caller.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard: optional wall-clock cap on the entire target
//  2. Launching: open an isolated session with UA, viewport, locale,
//     scripts off and the resource deny list applied by the engine
//  3. DEFER Closed: release the session on every exit path
//  4. Navigating: DOM-ready only, bounded by the navigation timeout
//  5. Interstitial: best-effort consent banner click
//  6. Extracting: every planned field, then the exchange name
//  7. Assemble: Ok, or Failed if the target deadline expired
//
// The panic guard is deferred before the session release so that a panic
// still closes the session first and only then becomes a Failed result.
func (s *Scraper) run(ctx context.Context, t models.ExtractionTarget) (res models.ExtractionResult) {
	start := time.Now()
	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
		if res.OK() {
			slog.Info("target extracted", "name", t.Name, "url", t.URL, "ms", res.DurationMs)
		} else {
			slog.Warn("target failed", "name", t.Name, "url", t.URL,
				"code", res.ErrorCode, "reason", res.Reason, "ms", res.DurationMs)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			res = models.FailedResult(t, models.NewScrapeError(
				models.ErrCodeInternal, "extraction panicked", fmt.Errorf("panic: %v", r)))
		}
	}()

	// ── 1. Timeout guard ──────────────────────────────────────────────
	if s.opts.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TargetTimeout)
		defer cancel()
	}

	// ── 2. Launching ──────────────────────────────────────────────────
	slog.Debug("opening session", "name", t.Name, "url", t.URL)
	sess, err := s.engine.Open(ctx, s.opts.Session)
	if err != nil {
		return models.FailedResult(t, categorizeError(err, models.ErrCodeBrowserCrash, "failed to open render session"))
	}

	// ── 3. DEFER: Closed ──────────────────────────────────────────────
	defer s.release(t, sess)

	// ── 4. Navigating ─────────────────────────────────────────────────
	if err := sess.Navigate(ctx, t.URL, s.opts.NavigationTimeout); err != nil {
		return models.FailedResult(t, categorizeError(err, models.ErrCodeNavigation, "navigation to target URL failed"))
	}

	// ── 5. Interstitial ───────────────────────────────────────────────
	dismissInterstitial(ctx, sess, s.opts.Dismissals)

	// ── 6. Extracting ─────────────────────────────────────────────────
	res = models.NewResult(t)
	for _, f := range s.opts.Plan.Fields() {
		res.Set(f.Key, s.extractor.Extract(ctx, sess, f))
	}
	exchange := s.opts.Plan.ExchangeName()
	res.Set(exchange.Key, s.extractor.Extract(ctx, sess, exchange))

	// ── 7. Assemble ───────────────────────────────────────────────────
	if err := ctx.Err(); err != nil {
		return models.FailedResult(t, categorizeError(err, models.ErrCodeTimeout, "target deadline exceeded"))
	}
	res.Status = models.StatusOK
	return res
}

// release closes sess. Teardown problems are logged and swallowed so they
// can never replace the result already produced for the target.
func (s *Scraper) release(t models.ExtractionTarget, sess engine.Session) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("session teardown panicked", "name", t.Name, "url", t.URL, "panic", r)
		}
	}()
	if err := sess.Close(); err != nil {
		slog.Warn("session teardown failed", "name", t.Name, "url", t.URL, "error", err)
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors. Deadline and
// cancellation always map to ErrCodeTimeout; everything else gets code.
func categorizeError(err error, code, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(code, msg, err)
	}
}
