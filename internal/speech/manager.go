// Package speech runs the live transcription session: it connects to the
// provider when the microphone becomes available, streams captured audio,
// keeps idle connections alive and commits finished utterances into the
// document.
package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"emotext/internal/bus"
	"emotext/internal/domain"
	"emotext/internal/observe"
	"emotext/internal/ports"
)

var ErrManagerClosed = errors.New("speech manager is closed")

const (
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultCaptionTimeout    = 3 * time.Second
	defaultCloseGrace        = 4 * time.Second
)

// LiveStreaming is the fixed provider configuration for live dictation.
var LiveStreaming = ports.StreamingConfig{
	Model:          "nova-2",
	SampleRate:     16000,
	Channels:       1,
	Encoding:       "linear16",
	InterimResults: true,
	SmartFormat:    true,
	FillerWords:    true,
	UtteranceEndMs: 3000,
}

// Config controls session behavior.
type Config struct {
	Streaming         ports.StreamingConfig
	KeepAliveInterval time.Duration
	CaptionTimeout    time.Duration
	CloseGrace        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Streaming == (ports.StreamingConfig{}) {
		c.Streaming = LiveStreaming
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.CaptionTimeout <= 0 {
		c.CaptionTimeout = DefaultCaptionTimeout
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = defaultCloseGrace
	}
	return c
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Provider ports.TranscriptionProvider
	Capture  ports.CaptureDevice
	Rules    ports.RulesEngine
	Target   ports.TextTarget
	Events   ports.EventSink
	Metrics  *observe.Metrics
	Logger   zerolog.Logger
}

// Manager owns the connection state machine:
// closed -> connecting -> open -> closed. It never reconnects on its own.
type Manager struct {
	provider ports.TranscriptionProvider
	capture  ports.CaptureDevice
	rules    ports.RulesEngine
	target   ports.TextTarget
	events   ports.EventSink
	metrics  *observe.Metrics
	logger   zerolog.Logger
	cfg      Config

	mu          sync.Mutex
	state       domain.ConnectionState
	current     *activeSession
	lastCapture domain.CaptureState
	captureSub  *bus.Subscription
	watchCtx    context.Context
	closed      bool
}

func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	return &Manager{
		provider: deps.Provider,
		capture:  deps.Capture,
		rules:    deps.Rules,
		target:   deps.Target,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "speech").Logger(),
		cfg:      cfg.withDefaults(),
		state:    domain.ConnectionClosed,
	}
}

// Watch follows the capture device. The first transition from idle to ready
// opens a session using ctx; capture state also drives the keep-alive loop.
func (m *Manager) Watch(ctx context.Context) {
	m.mu.Lock()
	if m.captureSub != nil || m.closed {
		m.mu.Unlock()
		return
	}
	m.watchCtx = ctx
	m.lastCapture = m.capture.State()
	m.mu.Unlock()

	sub := m.capture.OnStateChange(m.onCaptureState)

	m.mu.Lock()
	m.captureSub = sub
	m.mu.Unlock()
}

// State returns the connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens a session. It is a no-op unless the connection is closed.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.state != domain.ConnectionClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = domain.ConnectionConnecting
	m.mu.Unlock()
	m.events.ConnectionStateChanged(domain.ConnectionConnecting)

	started := time.Now()
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := m.provider.StartStreaming(sessionCtx, m.cfg.Streaming)
	if err != nil {
		cancel()
		m.logger.Error().Err(err).Msg("Failed to open transcription session")
		m.metrics.RecordProviderError(ctx, "connect")
		m.setClosed()
		m.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		return err
	}
	m.metrics.ConnectDuration.Record(ctx, time.Since(started).Seconds())

	active := &activeSession{
		id:         uuid.NewString(),
		cancel:     cancel,
		stream:     stream,
		caption:    newCaptionTimer(m.cfg.CaptionTimeout, func() { m.events.Caption("") }),
		eventsDone: make(chan struct{}),
	}
	active.keepAlive = newKeepAlive(m.cfg.KeepAliveInterval, m.keepAliveSender(active), m.logger)

	m.mu.Lock()
	if m.state != domain.ConnectionConnecting {
		// Disconnected while dialing.
		m.mu.Unlock()
		_ = stream.Close()
		cancel()
		return nil
	}
	m.current = active
	m.state = domain.ConnectionOpen
	m.mu.Unlock()

	m.metrics.OpenSessions.Add(ctx, 1)
	m.logger.Info().Str("session", active.id).Msg("Transcription session open")
	m.events.ConnectionStateChanged(domain.ConnectionOpen)

	active.dataSub = m.capture.OnData(m.forwardAudio(active))
	go m.consume(active)

	if m.capture.State() == domain.CaptureIdle {
		m.logger.Info().Str("session", active.id).Msg("No capture device, session stays idle")
	} else if err := m.capture.Start(ctx); err != nil {
		m.logger.Warn().Err(err).Str("session", active.id).Msg("Capture did not start")
		m.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
	}
	if m.capture.State() != domain.CaptureCapturing && m.isCurrent(active) {
		active.keepAlive.Start()
	}
	return nil
}

// Disconnect stops capture, closes the send side and waits for the provider
// to finish the stream.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	active := m.current
	if active == nil {
		connecting := m.state == domain.ConnectionConnecting
		if connecting {
			m.state = domain.ConnectionClosed
		}
		m.mu.Unlock()
		if connecting {
			m.events.ConnectionStateChanged(domain.ConnectionClosed)
		}
		return nil
	}
	m.mu.Unlock()

	active.keepAlive.Close()
	if err := m.capture.Stop(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to stop capture cleanly")
	}
	_ = active.stream.CloseSend()
	if err := waitForStream(active.stream, m.cfg.CloseGrace); err != nil {
		m.logger.Debug().Err(err).Str("session", active.id).Msg("Stream ended with error after disconnect")
	}
	_ = active.stream.Close()
	<-active.eventsDone
	return nil
}

// Close disconnects and stops following the capture device.
func (m *Manager) Close() error {
	err := m.Disconnect()

	m.mu.Lock()
	m.closed = true
	sub := m.captureSub
	m.captureSub = nil
	m.mu.Unlock()

	sub.Unsubscribe()
	return err
}

func (m *Manager) onCaptureState(state domain.CaptureState) {
	m.mu.Lock()
	previous := m.lastCapture
	m.lastCapture = state
	active := m.current
	ctx := m.watchCtx
	m.mu.Unlock()

	if previous == domain.CaptureIdle && state == domain.CaptureReady {
		go func() {
			if err := m.Connect(ctx); err != nil {
				m.logger.Debug().Err(err).Msg("Automatic connect failed")
			}
		}()
		return
	}

	if active == nil {
		return
	}
	if state == domain.CaptureCapturing {
		active.keepAlive.Stop()
		return
	}
	active.keepAlive.Start()
}

func (m *Manager) keepAliveSender(active *activeSession) func() error {
	return func() error {
		if err := active.stream.KeepAlive(); err != nil {
			return err
		}
		m.metrics.KeepAlives.Add(context.Background(), 1)
		return nil
	}
}

func (m *Manager) consume(active *activeSession) {
	defer close(active.eventsDone)

	for event := range active.stream.Events() {
		m.handleTranscript(active, event)
	}
	m.teardown(active, active.stream.Wait())
}

// teardown returns to closed once the provider stream has ended.
func (m *Manager) teardown(active *activeSession, streamErr error) {
	m.mu.Lock()
	if m.current != active {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.state = domain.ConnectionClosed
	m.mu.Unlock()

	active.detach()
	active.cancel()
	m.metrics.OpenSessions.Add(context.Background(), -1)

	if err := m.capture.Stop(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to stop capture after session end")
	}
	if streamErr != nil {
		m.logger.Error().Err(streamErr).Str("session", active.id).Msg("Transcription session failed")
		m.metrics.RecordProviderError(context.Background(), "stream")
		m.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
	} else {
		m.logger.Info().Str("session", active.id).Msg("Transcription session closed")
	}
	m.events.ConnectionStateChanged(domain.ConnectionClosed)
}

func (m *Manager) setClosed() {
	m.mu.Lock()
	changed := m.state != domain.ConnectionClosed
	m.state = domain.ConnectionClosed
	m.mu.Unlock()
	if changed {
		m.events.ConnectionStateChanged(domain.ConnectionClosed)
	}
}

func (m *Manager) isCurrent(active *activeSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == active
}
