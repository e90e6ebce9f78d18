package ports

import (
	"context"
	"io"

	"emotext/internal/bus"
	"emotext/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Probe(ctx context.Context, cfg AudioConfig) error
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// CaptureDevice is the microphone as the speech session sees it.
type CaptureDevice interface {
	State() domain.CaptureState
	Start(ctx context.Context) error
	Stop() error
	OnData(fn func([]byte)) *bus.Subscription
	OnStateChange(fn func(domain.CaptureState)) *bus.Subscription
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	Model          string
	Language       string
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	SmartFormat    bool
	FillerWords    bool
	UtteranceEndMs int
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	KeepAlive() error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// TextTarget receives fragments at the current caret.
type TextTarget interface {
	Insert(fragment string) (domain.Caret, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state and events to the view.
type EventSink interface {
	DocumentChanged(doc domain.Document)
	ConnectionStateChanged(state domain.ConnectionState)
	CaptureStateChanged(state domain.CaptureState)
	Caption(text string)
	ExpressionSettled(label domain.ExpressionLabel)
	ModelsReady()
	SessionError(code domain.ErrorCode, detail string)
}
