package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/quotegrab/engine"
)

// DefaultFieldTimeout bounds the visibility wait of a single strategy.
const DefaultFieldTimeout = 5 * time.Second

// Page is the part of a render session the extractor needs.
type Page interface {
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Query(ctx context.Context, selector string) (engine.Element, error)
}

// Extractor resolves fields against a rendered page.
type Extractor struct {
	// FieldTimeout is the per-strategy wait; DefaultFieldTimeout if zero.
	FieldTimeout time.Duration
}

// Extract walks f's strategies in order and returns the first non-empty
// value. A strategy that errors counts as a miss. When every strategy
// misses, f.Default is returned.
func (x Extractor) Extract(ctx context.Context, page Page, f FieldPlan) string {
	for i, s := range f.Strategies {
		if ctx.Err() != nil {
			break
		}
		if v, ok := x.try(ctx, page, s, !f.NoWait); ok {
			slog.Debug("field resolved", "field", f.Key.String(), "strategy", i, "selector", s.Selector)
			return v
		}
	}
	slog.Debug("field unresolved", "field", f.Key.String(), "default", f.Default)
	return f.Default
}

func (x Extractor) try(ctx context.Context, page Page, s Strategy, wait bool) (string, bool) {
	if wait {
		timeout := x.FieldTimeout
		if timeout <= 0 {
			timeout = DefaultFieldTimeout
		}
		if err := page.WaitVisible(ctx, s.Selector, timeout); err != nil {
			return "", false
		}
	}

	el, err := page.Query(ctx, s.Selector)
	if err != nil || el == nil {
		return "", false
	}

	switch s.Kind {
	case KindAttribute:
		v, err := el.Attribute(s.Attr)
		if err != nil || v == nil {
			return "", false
		}
		return strings.TrimSpace(*v), true
	default:
		text, err := el.Text()
		if err != nil {
			return "", false
		}
		text = strings.TrimSpace(text)
		return text, text != ""
	}
}
