// Package expression turns raw detector callbacks into a debounced stream of
// expression labels.
package expression

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"emotext/internal/bus"
	"emotext/internal/domain"
	"emotext/internal/observe"
)

// DefaultWindow is the quiet period a label must survive before delivery.
const DefaultWindow = 250 * time.Millisecond

// Stream coalesces label changes that arrive within the debounce window and
// delivers the settled label once to every subscriber.
type Stream struct {
	debounced func(func())
	hub       *bus.Hub[domain.ExpressionLabel]
	logger    zerolog.Logger
	metrics   *observe.Metrics

	mu          sync.Mutex
	lastRaw     domain.ExpressionLabel
	lastEmitted domain.ExpressionLabel
	closed      bool
}

// NewStream creates a stream with the given window. A nil metrics uses
// observe.DefaultMetrics.
func NewStream(window time.Duration, logger zerolog.Logger, metrics *observe.Metrics) *Stream {
	if window <= 0 {
		window = DefaultWindow
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Stream{
		debounced: debounce.New(window),
		hub:       bus.NewHub[domain.ExpressionLabel](),
		logger:    logger.With().Str("component", "expression-stream").Logger(),
		metrics:   metrics,
	}
}

// Push is the raw detector callback. Repeats of the previous raw label are
// not changes and do not restart the window.
func (s *Stream) Push(label domain.ExpressionLabel) {
	if !label.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || label == s.lastRaw {
		return
	}
	s.lastRaw = label
	s.metrics.RecordExpression(context.Background(), "observed", label.String())
	s.debounced(func() { s.emit(label) })
}

func (s *Stream) emit(label domain.ExpressionLabel) {
	s.mu.Lock()
	if s.closed || label == s.lastEmitted {
		s.mu.Unlock()
		return
	}
	s.lastEmitted = label
	s.mu.Unlock()

	s.metrics.RecordExpression(context.Background(), "emitted", label.String())
	s.logger.Debug().Str("label", label.String()).Msg("Expression settled")
	s.hub.Publish(label)
}

// Subscribe registers fn for settled labels.
func (s *Stream) Subscribe(fn func(domain.ExpressionLabel)) *bus.Subscription {
	return s.hub.Subscribe(fn)
}

// Close drops any pending label and stops delivery.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Clear()
}
