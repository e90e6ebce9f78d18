package speech

import (
	"emotext/internal/bus"
	"emotext/internal/ports"
)

// activeSession is one open provider connection and everything attached to it.
type activeSession struct {
	id     string
	cancel func()
	stream ports.StreamingSession

	dataSub    *bus.Subscription
	keepAlive  *keepAlive
	caption    *captionTimer
	eventsDone chan struct{}
}

func (s *activeSession) detach() {
	s.dataSub.Unsubscribe()
	s.keepAlive.Close()
	s.caption.Stop()
}
