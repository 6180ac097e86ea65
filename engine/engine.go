package engine

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a selector matches no (visible) element.
var ErrNotFound = errors.New("element not found")

// Engine is the render capability every extraction session runs on.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Name returns the engine identifier (e.g. "rod", "http").
	Name() string

	// Start prepares the engine. It is idempotent; a failed Start may be
	// retried. Failure means no session can be opened at all.
	Start(ctx context.Context) error

	// Open creates a new isolated session. Sessions are never shared.
	Open(ctx context.Context, opts SessionOptions) (Session, error)

	// Close releases the engine and every resource it still holds.
	Close() error
}

// Session is one isolated browsing context plus page, scoped to a single
// target. Close must be called exactly once on every exit path.
type Session interface {
	// Navigate loads url and returns once the DOM is ready.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitVisible blocks until selector matches a visible element or timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Query returns the first element matching selector, without waiting.
	Query(ctx context.Context, selector string) (Element, error)

	// ClickText clicks the first element matching selector whose text
	// contains text. It gives up after timeout.
	ClickText(ctx context.Context, selector, text string, timeout time.Duration) error

	// Close releases the page context and then the engine instance backing it.
	Close() error
}

// Element is a handle to a DOM node inside a Session.
type Element interface {
	// Text returns the rendered inner text.
	Text() (string, error)

	// Attribute returns the attribute value, or nil if it is absent.
	Attribute(name string) (*string, error)
}

// ResourceKind classifies a subresource request.
type ResourceKind string

const (
	ResourceDocument    ResourceKind = "Document"
	ResourceImage       ResourceKind = "Image"
	ResourceMedia       ResourceKind = "Media"
	ResourceFont        ResourceKind = "Font"
	ResourceStylesheet  ResourceKind = "Stylesheet"
	ResourceScript      ResourceKind = "Script"
	ResourceWebSocket   ResourceKind = "WebSocket"
	ResourceEventSource ResourceKind = "EventSource"
	ResourceXHR         ResourceKind = "XHR"
	ResourceFetch       ResourceKind = "Fetch"
	ResourceOther       ResourceKind = "Other"
)

// DefaultUserAgent is a desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Viewport is a fixed window size.
type Viewport struct {
	Width  int
	Height int
}

// SessionOptions configures a new Session. The engine evaluates Blocks
// for every subresource request; the caller never sees the requests.
type SessionOptions struct {
	UserAgent      string
	Viewport       Viewport
	Locale         string
	ScriptDisabled bool
	Blocked        []ResourceKind
}

// Blocks reports whether requests of the given kind must be denied.
func (o SessionOptions) Blocks(kind ResourceKind) bool {
	for _, b := range o.Blocked {
		if b == kind {
			return true
		}
	}
	return false
}

// DefaultBlocked is the deny list used when none is configured.
var DefaultBlocked = []ResourceKind{
	ResourceImage,
	ResourceMedia,
	ResourceFont,
	ResourceStylesheet,
	ResourceWebSocket,
	ResourceEventSource,
}

// ParseResourceKinds converts config strings to ResourceKinds, dropping
// unknown names.
func ParseResourceKinds(names []string) []ResourceKind {
	known := map[ResourceKind]struct{}{
		ResourceDocument: {}, ResourceImage: {}, ResourceMedia: {}, ResourceFont: {},
		ResourceStylesheet: {}, ResourceScript: {}, ResourceWebSocket: {},
		ResourceEventSource: {}, ResourceXHR: {}, ResourceFetch: {}, ResourceOther: {},
	}
	kinds := make([]ResourceKind, 0, len(names))
	for _, n := range names {
		if _, ok := known[ResourceKind(n)]; ok {
			kinds = append(kinds, ResourceKind(n))
		}
	}
	return kinds
}
