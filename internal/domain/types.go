package domain

// ConnectionState models the live transcription connection lifecycle.
type ConnectionState string

const (
	ConnectionClosed     ConnectionState = "closed"
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
)

// CaptureState models the microphone lifecycle.
type CaptureState string

const (
	CaptureIdle      CaptureState = "idle"
	CaptureReady     CaptureState = "ready"
	CaptureCapturing CaptureState = "capturing"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioDevice   ErrorCode = "audio_device"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeClipboard     ErrorCode = "clipboard"
	ErrorCodeModels        ErrorCode = "models"
)

// TranscriptKind identifies what a provider event carries.
type TranscriptKind string

const (
	TranscriptKindPartial      TranscriptKind = "partial"
	TranscriptKindFinal        TranscriptKind = "final"
	TranscriptKindUtteranceEnd TranscriptKind = "utterance_end"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind        TranscriptKind `json:"kind"`
	Text        string         `json:"text"`
	IsFinal     bool           `json:"isFinal"`
	SpeechFinal bool           `json:"speechFinal"`
}

// Committable reports whether the event is final and closes an utterance.
func (e TranscriptEvent) Committable() bool {
	return e.IsFinal && e.SpeechFinal
}

// ViewState is the snapshot the view renders from.
type ViewState struct {
	Loading    bool            `json:"loading"`
	Document   Document        `json:"document"`
	Connection ConnectionState `json:"connection"`
	Capture    CaptureState    `json:"capture"`
}
