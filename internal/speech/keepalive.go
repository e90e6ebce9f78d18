package speech

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// keepAlive pings the provider while no audio flows: once immediately, then
// once per interval until stopped.
type keepAlive struct {
	interval time.Duration
	send     func() error
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

func newKeepAlive(interval time.Duration, send func() error, logger zerolog.Logger) *keepAlive {
	return &keepAlive{interval: interval, send: send, logger: logger}
}

// Start launches the ping loop. Starting a running or closed loop is a no-op.
func (k *keepAlive) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cancel != nil || k.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done
	go k.loop(ctx, done)
}

// Stop ends the loop and waits for it to exit.
func (k *keepAlive) Stop() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the loop for good.
func (k *keepAlive) Close() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()
	k.Stop()
}

// Running reports whether the loop is active.
func (k *keepAlive) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cancel != nil
}

func (k *keepAlive) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	k.ping()
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.ping()
		}
	}
}

func (k *keepAlive) ping() {
	if err := k.send(); err != nil {
		k.logger.Debug().Err(err).Msg("Keep-alive failed")
	}
}
