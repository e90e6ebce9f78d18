package speech

import (
	"sync"
	"time"
)

// captionTimer clears the live caption a fixed delay after the last committed
// utterance. Every Reset restarts the delay.
type captionTimer struct {
	delay time.Duration
	clear func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newCaptionTimer(delay time.Duration, clear func()) *captionTimer {
	return &captionTimer{delay: delay, clear: clear}
}

func (c *captionTimer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		current := c.gen == gen
		c.mu.Unlock()
		if current {
			c.clear()
		}
	})
}

func (c *captionTimer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}
