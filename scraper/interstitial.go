package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/quotegrab/engine"
)

// Dismissal is one attempt at clicking a consent banner away.
type Dismissal struct {
	Selector string
	Text     string
	Timeout  time.Duration
}

// DefaultDismissals tries the English button first, then the Spanish one.
var DefaultDismissals = []Dismissal{
	{Selector: "button", Text: "Accept", Timeout: 2 * time.Second},
	{Selector: "button", Text: "Aceptar", Timeout: 1 * time.Second},
}

// attempt runs fn under its own timeout and reports whether it succeeded.
// The error is dropped here and nowhere else.
func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) bool {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx) == nil
}

// dismissInterstitial clicks the first matching consent button, if any.
// A missing banner is the common case and is not an error.
func dismissInterstitial(ctx context.Context, sess engine.Session, dismissals []Dismissal) {
	for _, d := range dismissals {
		ok := attempt(ctx, d.Timeout, func(actx context.Context) error {
			return sess.ClickText(actx, d.Selector, d.Text, d.Timeout)
		})
		if ok {
			slog.Debug("interstitial dismissed", "text", d.Text)
			return
		}
	}
}
