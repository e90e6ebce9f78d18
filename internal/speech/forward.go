package speech

import (
	"context"
	"time"

	"emotext/internal/ports"
)

// forwardAudio returns the capture listener for one session. Empty chunks are
// counted and never reach the provider.
func (m *Manager) forwardAudio(active *activeSession) func([]byte) {
	return func(chunk []byte) {
		ctx := context.Background()
		if len(chunk) == 0 {
			m.metrics.AudioChunksDropped.Add(ctx, 1)
			return
		}
		if err := active.stream.SendAudio(chunk); err != nil {
			m.logger.Debug().Err(err).Str("session", active.id).Msg("Dropping audio for closing session")
			return
		}
		m.metrics.AudioChunks.Add(ctx, 1)
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
