// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/quotegrab/engine"
)

// Node is a fake DOM element.
type Node struct {
	Text   string
	Attrs  map[string]string
	Hidden bool

	// Detached makes reads fail as if the node left the DOM.
	Detached bool
}

// Page is a fake document, addressed by selector.
type Page struct {
	Nodes   map[string]Node
	Buttons []string

	// NavDelay is slept (honouring ctx) before navigation completes.
	NavDelay time.Duration
	// WaitDelay is how long an element takes to become visible. Waits
	// shorter than it block for their whole timeout and then fail, like a
	// browser waiting on a selector that never shows up.
	WaitDelay time.Duration
	// Panic makes every Query on this page panic.
	Panic bool
}

// Engine serves Pages by URL. Unknown URLs fail navigation the way an
// unresolvable host would. The zero value is not usable; use New.
type Engine struct {
	StartErr error
	OpenErr  error
	CloseErr error

	mu       sync.Mutex
	pages    map[string]*Page
	sessions []*Session
	starts   int
	active   int
	peak     int
}

// New returns an Engine serving pages.
func New(pages map[string]*Page) *Engine {
	if pages == nil {
		pages = map[string]*Page{}
	}
	return &Engine{pages: pages}
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	return e.StartErr
}

func (e *Engine) Open(ctx context.Context, opts engine.SessionOptions) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	s := &Session{engine: e, Opts: opts}
	e.sessions = append(e.sessions, s)
	e.active++
	if e.active > e.peak {
		e.peak = e.active
	}
	return s, nil
}

func (e *Engine) Close() error { return nil }

// Sessions returns every session opened so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// Active returns the number of sessions opened and not yet closed.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Peak returns the highest number of simultaneously open sessions.
func (e *Engine) Peak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// Starts returns how many times Start was called.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *Engine) page(url string) (*Page, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pages[url]
	return p, ok
}

// Session is a fake engine.Session that records its lifecycle.
type Session struct {
	Opts engine.SessionOptions

	engine *Engine

	mu         sync.Mutex
	url        string
	page       *Page
	closeCalls int
	clicks     []string
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()

	p, ok := s.engine.page(url)
	if !ok {
		return fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	if p.NavDelay > 0 {
		if p.NavDelay > timeout {
			return context.DeadlineExceeded
		}
		select {
		case <-time.After(p.NavDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	p := s.page
	s.mu.Unlock()
	if p != nil && p.WaitDelay > 0 {
		d := p.WaitDelay
		if d > timeout {
			d = timeout
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
		if p.WaitDelay > timeout {
			return context.DeadlineExceeded
		}
	}

	n, err := s.node(selector)
	if err != nil {
		return err
	}
	if n.Hidden {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Session) Query(ctx context.Context, selector string) (engine.Element, error) {
	n, err := s.node(selector)
	if err != nil {
		return nil, err
	}
	return element{n: n}, nil
}

func (s *Session) ClickText(ctx context.Context, selector, text string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return engine.ErrNotFound
	}
	for _, b := range s.page.Buttons {
		if strings.Contains(b, text) {
			s.clicks = append(s.clicks, b)
			return nil
		}
	}
	return engine.ErrNotFound
}

// Close records the call; only the first call releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closeCalls++
	first := s.closeCalls == 1
	s.mu.Unlock()

	if first {
		s.engine.mu.Lock()
		s.engine.active--
		s.engine.mu.Unlock()
	}
	return s.engine.CloseErr
}

// URL returns the last URL navigated to.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// CloseCalls returns how many times Close was called.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Clicks returns the button labels clicked.
func (s *Session) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

func (s *Session) node(selector string) (Node, error) {
	s.mu.Lock()
	p := s.page
	s.mu.Unlock()
	if p == nil {
		return Node{}, engine.ErrNotFound
	}
	if p.Panic {
		panic("enginetest: query on poisoned page")
	}
	n, ok := p.Nodes[selector]
	if !ok {
		return Node{}, engine.ErrNotFound
	}
	return n, nil
}

type element struct {
	n Node
}

func (e element) Text() (string, error) {
	if e.n.Detached {
		return "", ErrDetached
	}
	return e.n.Text, nil
}

func (e element) Attribute(name string) (*string, error) {
	if e.n.Detached {
		return nil, ErrDetached
	}
	v, ok := e.n.Attrs[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// ErrDetached mimics an element that vanished between lookup and read.
var ErrDetached = errors.New("element detached")
