package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"emotext/internal/ports"
)

var ErrNoSource = errors.New("no usable audio source")

// pulseFragment is 20ms of 16kHz mono s16.
const pulseFragment = 640

// Source is one PulseAudio input as reported by the server.
type Source struct {
	ID          string
	Description string
	Available   bool
	Muted       bool
	Default     bool
}

// PulseCapture records from a PulseAudio source without a child process.
type PulseCapture struct {
	appName string
}

func NewPulseCapture() *PulseCapture {
	return &PulseCapture{appName: "emotext"}
}

func (c *PulseCapture) connect() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(c.appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Probe connects to the server and checks that the configured source exists,
// is plugged in and is not muted.
func (c *PulseCapture) Probe(_ context.Context, cfg ports.AudioConfig) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	sources, err := listSources(client)
	if err != nil {
		return err
	}
	_, err = pickSource(sources, cfg.InputDevice)
	return err
}

func (c *PulseCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)
	if cfg.Channels != 1 {
		return nil, fmt.Errorf("pulse capture records mono only, got %d channels", cfg.Channels)
	}

	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	sources, err := listSources(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	picked, err := pickSource(sources, cfg.InputDevice)
	if err != nil {
		client.Close()
		return nil, err
	}
	source, err := client.SourceByID(picked.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", picked.ID, err)
	}

	reader, writer := io.Pipe()
	stream, err := client.NewRecord(
		pulse.NewWriter(writer, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(pulseFragment),
		pulse.RecordMediaName("emotext dictation"),
	)
	if err != nil {
		client.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	session := &pulseSession{client: client, stream: stream, reader: reader, writer: writer}
	stream.Start()
	context.AfterFunc(ctx, func() { _ = session.Stop() })
	return session, nil
}

type pulseSession struct {
	client *pulse.Client
	stream *pulse.RecordStream
	reader *io.PipeReader
	writer *io.PipeWriter

	stopOnce sync.Once
}

func (s *pulseSession) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *pulseSession) Close() error {
	return s.Stop()
}

// Stop ends the record stream. Pending reads return io.EOF.
func (s *pulseSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.writer.Close()
		s.stream.Stop()
		s.stream.Close()
		s.client.Close()
	})
	return nil
}

func listSources(client *pulse.Client) ([]Source, error) {
	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make([]Source, 0, len(reply))
	for _, info := range reply {
		if info == nil {
			continue
		}
		sources = append(sources, Source{
			ID:          info.SourceName,
			Description: info.Device,
			Available:   portAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return sources, nil
}

// pickSource resolves the configured input. "default" or empty picks the
// server default; anything else matches a source id or description
// case-insensitively.
func pickSource(sources []Source, input string) (Source, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	useDefault := input == "" || input == "default"

	for _, source := range sources {
		matched := source.Default
		if !useDefault {
			matched = strings.Contains(strings.ToLower(source.ID), input) ||
				strings.Contains(strings.ToLower(source.Description), input)
		}
		if !matched {
			continue
		}
		switch {
		case source.Muted:
			return Source{}, fmt.Errorf("%w: %s is muted", ErrNoSource, source.ID)
		case !source.Available:
			return Source{}, fmt.Errorf("%w: %s is unplugged", ErrNoSource, source.ID)
		}
		return source, nil
	}

	if useDefault {
		return Source{}, fmt.Errorf("%w: no default source", ErrNoSource)
	}
	return Source{}, fmt.Errorf("%w: %q matched nothing", ErrNoSource, input)
}

// portAvailable reads the active port's availability. Pulse reports
// unknown=0, no=1, yes=2; sources without ports count as available.
func portAvailable(info *pulseproto.GetSourceInfoReply) bool {
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
