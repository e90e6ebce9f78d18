package audio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"emotext/internal/bus"
	"emotext/internal/domain"
	"emotext/internal/ports"
)

var ErrDeviceNotReady = errors.New("capture device is not set up")

const defaultChunkSize = 4096

// Microphone owns the capture device state and publishes captured chunks.
type Microphone struct {
	capture   ports.AudioCapture
	cfg       ports.AudioConfig
	chunkSize int
	logger    zerolog.Logger

	mu       sync.Mutex
	state    domain.CaptureState
	session  ports.AudioSession
	pumpDone chan struct{}

	// starting is set while capture.Start runs outside the lock.
	starting    bool
	stopPending bool

	data   *bus.Hub[[]byte]
	states *bus.Hub[domain.CaptureState]
}

func NewMicrophone(capture ports.AudioCapture, cfg ports.AudioConfig, chunkSize int, logger zerolog.Logger) *Microphone {
	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}
	return &Microphone{
		capture:   capture,
		cfg:       cfg,
		chunkSize: chunkSize,
		logger:    logger.With().Str("component", "microphone").Logger(),
		state:     domain.CaptureIdle,
		data:      bus.NewHub[[]byte](),
		states:    bus.NewHub[domain.CaptureState](),
	}
}

// Setup probes the device once. On failure the device stays idle and
// capture is disabled; there is no retry.
func (m *Microphone) Setup(ctx context.Context) error {
	if m.State() != domain.CaptureIdle {
		return nil
	}
	if err := m.capture.Probe(ctx, m.cfg); err != nil {
		m.logger.Warn().Err(err).Msg("Capture device unavailable, capture disabled")
		return err
	}
	m.setState(domain.CaptureReady)
	return nil
}

// Start begins capturing. Starting while already capturing, or while another
// Start is in flight, is a no-op.
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state == domain.CaptureIdle:
		m.mu.Unlock()
		return ErrDeviceNotReady
	case m.state == domain.CaptureCapturing, m.starting:
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	m.stopPending = false
	m.mu.Unlock()

	session, err := m.capture.Start(ctx, m.cfg)

	m.mu.Lock()
	m.starting = false
	stopped := m.stopPending
	m.stopPending = false
	if err != nil {
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("Failed to start capture")
		return err
	}
	if stopped {
		m.mu.Unlock()
		return session.Stop()
	}
	done := make(chan struct{})
	m.session = session
	m.pumpDone = done
	m.mu.Unlock()

	m.setState(domain.CaptureCapturing)
	go m.pump(session, done)
	return nil
}

// Stop ends capturing and returns the device to ready.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	session := m.session
	done := m.pumpDone
	m.session = nil
	if session == nil && m.starting {
		m.stopPending = true
	}
	m.mu.Unlock()

	if session == nil {
		return nil
	}

	err := session.Stop()
	<-done
	m.setState(domain.CaptureReady)
	return err
}

// State returns the current capture state.
func (m *Microphone) State() domain.CaptureState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnData registers fn for every captured chunk.
func (m *Microphone) OnData(fn func([]byte)) *bus.Subscription {
	return m.data.Subscribe(fn)
}

// OnStateChange registers fn for capture state transitions.
func (m *Microphone) OnStateChange(fn func(domain.CaptureState)) *bus.Subscription {
	return m.states.Subscribe(fn)
}

func (m *Microphone) setState(state domain.CaptureState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	m.logger.Debug().Str("state", string(state)).Msg("Capture state changed")
	m.states.Publish(state)
}

func (m *Microphone) pump(session ports.AudioSession, done chan struct{}) {
	defer close(done)

	buf := make([]byte, m.chunkSize)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			m.data.Publish(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			m.finishPump(session, err)
			return
		}
	}
}

// finishPump handles a recorder that ended on its own rather than via Stop.
func (m *Microphone) finishPump(session ports.AudioSession, err error) {
	m.mu.Lock()
	ownedByStop := m.session != session
	if !ownedByStop {
		m.session = nil
	}
	m.mu.Unlock()

	if ownedByStop {
		return
	}
	if !errors.Is(err, io.EOF) {
		m.logger.Error().Err(err).Msg("Audio capture error")
	}
	_ = session.Stop()
	m.setState(domain.CaptureReady)
}
