package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"emotext/internal/bus"
	"emotext/internal/domain"
	"emotext/internal/observe"
	"emotext/internal/ports"
)

var errStreamClosed = errors.New("stream closed")

type harness struct {
	manager  *Manager
	capture  *fakeCapture
	provider *fakeProvider
	stream   *fakeStream
	rules    *fakeRules
	target   *fakeTarget
	events   *fakeEventSink
	reader   *sdkmetric.ManualReader
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{
		capture:  newFakeCapture(domain.CaptureIdle),
		stream:   newFakeStream(),
		rules:    &fakeRules{},
		target:   &fakeTarget{},
		events:   &fakeEventSink{},
		reader:   reader,
		provider: &fakeProvider{},
	}
	h.provider.sessions = []ports.StreamingSession{h.stream}
	h.manager = NewManager(Deps{
		Provider: h.provider,
		Capture:  h.capture,
		Rules:    h.rules,
		Target:   h.target,
		Events:   h.events,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	}, cfg)
	t.Cleanup(func() { _ = h.manager.Close() })
	return h
}

func (h *harness) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func (h *harness) insertionsWith(t *testing.T, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "emotext.insertions" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok && v.AsString() == status {
					total += dp.Value
				}
			}
		}
	}
	return total
}

type fakeCapture struct {
	mu       sync.Mutex
	state    domain.CaptureState
	startErr error
	starts   int
	stops    int

	data   *bus.Hub[[]byte]
	states *bus.Hub[domain.CaptureState]
}

func newFakeCapture(state domain.CaptureState) *fakeCapture {
	return &fakeCapture{
		state:  state,
		data:   bus.NewHub[[]byte](),
		states: bus.NewHub[domain.CaptureState](),
	}
}

func (f *fakeCapture) State() domain.CaptureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCapture) Start(context.Context) error {
	f.mu.Lock()
	if f.startErr != nil {
		f.mu.Unlock()
		return f.startErr
	}
	if f.state == domain.CaptureCapturing {
		f.mu.Unlock()
		return nil
	}
	f.state = domain.CaptureCapturing
	f.starts++
	f.mu.Unlock()
	f.states.Publish(domain.CaptureCapturing)
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	if f.state != domain.CaptureCapturing {
		f.mu.Unlock()
		return nil
	}
	f.state = domain.CaptureReady
	f.stops++
	f.mu.Unlock()
	f.states.Publish(domain.CaptureReady)
	return nil
}

func (f *fakeCapture) OnData(fn func([]byte)) *bus.Subscription {
	return f.data.Subscribe(fn)
}

func (f *fakeCapture) OnStateChange(fn func(domain.CaptureState)) *bus.Subscription {
	return f.states.Subscribe(fn)
}

func (f *fakeCapture) set(state domain.CaptureState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	f.states.Publish(state)
}

func (f *fakeCapture) emit(chunk []byte) {
	f.data.Publish(chunk)
}

func (f *fakeCapture) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []ports.StreamingSession
	err      error
	calls    int
	lastCfg  ports.StreamingConfig
}

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCfg = cfg
	if f.err != nil {
		f.calls++
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	sent       []string
	keepAlives int
	closeSend  int
	closeCalls int
	closed     bool
	waitErr    error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStream) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errStreamClosed
	}
	f.sent = append(f.sent, string(chunk))
	return nil
}

func (f *fakeStream) KeepAlive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errStreamClosed
	}
	f.keepAlives++
	return nil
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	f.closeLocked()
	return nil
}

func (f *fakeStream) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStream) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeLocked()
	return nil
}

// end simulates the provider finishing the stream.
func (f *fakeStream) end(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	f.closeLocked()
}

func (f *fakeStream) closeLocked() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStream) keepAliveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keepAlives
}

func (f *fakeStream) sentChunks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeRules struct {
	upper bool
	err   error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.upper {
		return strings.ToUpper(text), nil
	}
	return text, nil
}

type fakeTarget struct {
	mu        sync.Mutex
	fragments []string
	err       error
}

func (f *fakeTarget) Insert(fragment string) (domain.Caret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Caret{}, f.err
	}
	f.fragments = append(f.fragments, fragment)
	return domain.Collapsed(len(fragment)), nil
}

func (f *fakeTarget) inserted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fragments...)
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu          sync.Mutex
	connections []domain.ConnectionState
	captions    []string
	errors      []errEvent
}

func (f *fakeEventSink) DocumentChanged(domain.Document)          {}
func (f *fakeEventSink) CaptureStateChanged(domain.CaptureState)  {}
func (f *fakeEventSink) ExpressionSettled(domain.ExpressionLabel) {}
func (f *fakeEventSink) ModelsReady()                             {}

func (f *fakeEventSink) ConnectionStateChanged(state domain.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, state)
}

func (f *fakeEventSink) Caption(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, text)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotConnections() []domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConnectionState(nil), f.connections...)
}

func (f *fakeEventSink) snapshotCaptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.captions...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}
