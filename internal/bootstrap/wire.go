// Package bootstrap assembles the runtime graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"emotext/internal/audio"
	"emotext/internal/bus"
	"emotext/internal/compose"
	"emotext/internal/config"
	"emotext/internal/document"
	"emotext/internal/domain"
	"emotext/internal/expression"
	"emotext/internal/logging"
	"emotext/internal/observe"
	"emotext/internal/ports"
	"emotext/internal/providers/deepgram"
	"emotext/internal/rules"
	"emotext/internal/speech"
	"emotext/internal/vision"
)

// Version is reported as the service version in metrics.
var Version = "dev"

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *logging.Logger
	Metrics    *observe.Metrics
	Document   *document.State
	Stream     *expression.Stream
	Composer   *compose.Composer
	Detector   *vision.Detector
	Models     *vision.Models
	Microphone *audio.Microphone
	Speech     *speech.Manager
	Rules      *rules.Engine

	events          ports.EventSink
	shutdownMetrics func(context.Context) error

	mu     sync.Mutex
	subs   []*bus.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, events ports.EventSink) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return nil, err
	}

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "emotext",
		ServiceVersion: Version,
		ListenAddr:     cfg.Metrics.ListenAddr,
	})
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to start metrics: %w", err)
	}
	metrics := observe.DefaultMetrics()

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		_ = shutdownMetrics(ctx)
		_ = logger.Close()
		return nil, err
	}

	doc := document.NewState()
	stream := expression.NewStream(cfg.Expression.Window, logger.Zerolog(), metrics)
	mic := audio.NewMicrophone(
		newCapture(cfg.Audio),
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		cfg.Audio.ChunkSize,
		logger.Zerolog(),
	)

	streaming := speech.LiveStreaming
	streaming.Model = cfg.Deepgram.Model
	streaming.Language = cfg.Deepgram.Language
	streaming.SampleRate = cfg.Audio.SampleRate
	streaming.Channels = cfg.Audio.Channels

	manager := speech.NewManager(speech.Deps{
		Provider: deepgram.NewProvider(deepgram.Config{
			APIKey:     cfg.Deepgram.APIKey,
			APIBaseURL: cfg.Deepgram.APIBaseURL,
			Logger:     logger.Zerolog(),
		}),
		Capture: mic,
		Rules:   compose.TranscriptRewriter{Rules: rulesEngine},
		Target:  doc,
		Events:  events,
		Metrics: metrics,
		Logger:  logger.Zerolog(),
	}, speech.Config{
		Streaming:         streaming,
		KeepAliveInterval: cfg.Speech.KeepAliveInterval,
		CaptionTimeout:    cfg.Speech.CaptionTimeout,
		CloseGrace:        cfg.Speech.CloseGrace,
	})

	return &Services{
		Config:          cfg,
		Logger:          logger,
		Metrics:         metrics,
		Document:        doc,
		Stream:          stream,
		Composer:        compose.NewComposer(doc, events, metrics, logger.Zerolog()),
		Detector:        vision.NewDetector(stream, cfg.Expression.MinConfidence, logger.Zerolog()),
		Models:          vision.NewModels(cfg.Vision.ModelsDir, logger.Zerolog()),
		Microphone:      mic,
		Speech:          manager,
		Rules:           rulesEngine,
		events:          events,
		shutdownMetrics: shutdownMetrics,
	}, nil
}

// Start connects the components to each other and to the view, then brings
// up the capture device. Failures of optional parts are reported through the
// event sink and do not stop startup.
func (s *Services) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	log := s.Logger.Component("bootstrap")

	s.mu.Lock()
	s.cancel = cancel
	s.subs = append(s.subs,
		s.Document.Subscribe(s.events.DocumentChanged),
		s.Microphone.OnStateChange(s.events.CaptureStateChanged),
		s.Composer.Follow(s.Stream),
		s.Models.OnReady(s.events.ModelsReady),
	)
	s.mu.Unlock()

	if err := s.Models.Verify(ctx); err != nil {
		s.events.SessionError(domain.ErrorCodeModels, err.Error())
	}

	s.Speech.Watch(ctx)

	if s.Config.Rules.Watch && s.Rules.Path() != "" {
		s.goRun(func() {
			err := rules.Watch(ctx, s.Rules, s.Logger.Zerolog(), func(err error) {
				s.events.SessionError(domain.ErrorCodeRules, err.Error())
			})
			if err != nil {
				log.Warn().Err(err).Msg("Rules watcher stopped")
			}
		})
	}

	if url := s.Config.Vision.SidecarURL; url != "" {
		client := vision.NewSidecarClient(vision.SidecarConfig{
			URL:            url,
			ReconnectDelay: s.Config.Vision.SidecarReconnect,
		}, s.Detector, s.Logger.Zerolog())
		s.goRun(func() { _ = client.Run(ctx) })
	}

	if err := s.Microphone.Setup(ctx); err != nil {
		s.events.SessionError(domain.ErrorCodeAudioDevice, err.Error())
	}
	log.Info().Str("config", s.Config.File).Msg("Services started")
}

// Shutdown stops every component and flushes metrics.
func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.Speech.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Microphone.Stop(); err != nil {
		errs = append(errs, err)
	}
	s.Stream.Close()

	s.mu.Lock()
	cancel := s.cancel
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	for _, sub := range subs {
		sub.Unsubscribe()
	}

	if err := s.shutdownMetrics(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func newCapture(cfg config.AudioConfig) ports.AudioCapture {
	if cfg.Backend == config.AudioBackendPulse {
		return audio.NewPulseCapture()
	}
	return audio.NewFFMPEGCapture(cfg.RecorderCommand)
}

func (s *Services) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}
