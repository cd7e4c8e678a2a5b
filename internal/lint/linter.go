package lint

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlscout/sqlscout/internal/db"
)

// DefaultDebounce is how long a document must stay quiet before it is
// validated. Each change restarts the countdown, so a typing burst costs
// one round-trip, not one per keystroke.
const DefaultDebounce = 450 * time.Millisecond

// PublishFunc receives the diagnostics for a document version once
// validation settles.
type PublishFunc func(uri string, version int, diags []Diagnostic)

type pending struct {
	timer   *time.Timer
	version int
	content string
}

// Linter debounces document changes and validates the settled content in
// the background. Results for stale versions are discarded rather than
// published.
type Linter struct {
	adapter db.Adapter
	delay   time.Duration
	publish PublishFunc
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pending
	latest  map[string]int
	closed  bool
}

// Option configures a Linter.
type Option func(*Linter)

// WithDebounce overrides the quiet window.
func WithDebounce(d time.Duration) Option {
	return func(l *Linter) { l.delay = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linter) { l.logger = logger }
}

// NewLinter creates a Linter that validates through adapter and delivers
// results via publish.
func NewLinter(adapter db.Adapter, publish PublishFunc, opts ...Option) *Linter {
	l := &Linter{
		adapter: adapter,
		delay:   DefaultDebounce,
		publish: publish,
		logger:  slog.Default(),
		pending: make(map[string]*pending),
		latest:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Schedule queues validation of a document version. A newer call for the
// same URI resets the timer and supersedes the older content.
func (l *Linter) Schedule(uri string, version int, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.latest[uri] = version

	if p, ok := l.pending[uri]; ok {
		p.timer.Stop()
	}

	p := &pending{version: version, content: content}
	p.timer = time.AfterFunc(l.delay, func() { l.fire(uri, p) })
	l.pending[uri] = p
}

// Cancel drops any queued validation for a URI. Called when a document
// closes.
func (l *Linter) Cancel(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.pending[uri]; ok {
		p.timer.Stop()
		delete(l.pending, uri)
	}
	delete(l.latest, uri)
}

// Close cancels everything and stops accepting new work.
func (l *Linter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for uri, p := range l.pending {
		p.timer.Stop()
		delete(l.pending, uri)
	}
	l.latest = make(map[string]int)
}

func (l *Linter) fire(uri string, p *pending) {
	l.mu.Lock()
	if l.closed || l.pending[uri] != p {
		l.mu.Unlock()
		return
	}
	delete(l.pending, uri)
	l.mu.Unlock()

	diags := Validate(context.Background(), l.adapter, p.content)

	l.mu.Lock()
	stale := l.closed || l.latest[uri] != p.version
	l.mu.Unlock()
	if stale {
		l.logger.Debug("discarding stale diagnostics", "uri", uri, "version", p.version)
		return
	}

	l.logger.Debug("validated document", "uri", uri, "version", p.version, "diagnostics", len(diags))
	if l.publish != nil {
		l.publish(uri, p.version, diags)
	}
}
