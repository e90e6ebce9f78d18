package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultReconnectDelay = 2 * time.Second

// SidecarConfig points at an external inference process that streams
// expression scores over a websocket.
type SidecarConfig struct {
	URL            string
	ReconnectDelay time.Duration
}

// SidecarClient feeds frames from an inference sidecar into a Detector.
type SidecarClient struct {
	cfg      SidecarConfig
	detector *Detector
	dialer   *websocket.Dialer
	logger   zerolog.Logger
}

type sidecarFrame struct {
	Type        string    `json:"type"`
	Expressions Detection `json:"expressions"`
	Error       string    `json:"error"`
}

func NewSidecarClient(cfg SidecarConfig, detector *Detector, logger zerolog.Logger) *SidecarClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	return &SidecarClient{
		cfg:      cfg,
		detector: detector,
		dialer:   websocket.DefaultDialer,
		logger:   logger.With().Str("component", "sidecar").Str("url", cfg.URL).Logger(),
	}
}

// Run connects and reads frames until ctx is done, reconnecting after a
// fixed delay whenever the connection drops.
func (c *SidecarClient) Run(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("sidecar url is empty")
	}

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Dur("retryIn", c.cfg.ReconnectDelay).Msg("Sidecar connection lost")

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *SidecarClient) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to sidecar: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.logger.Info().Msg("Sidecar connected")
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read sidecar frame: %w", err)
		}

		var frame sidecarFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.logger.Debug().Err(err).Msg("Skipping undecodable sidecar frame")
			continue
		}
		switch frame.Type {
		case "expressions":
			// An empty map means no face in the frame.
			if len(frame.Expressions) > 0 {
				c.detector.Observe(frame.Expressions)
			}
		case "error":
			// Inference failures are per frame; the stream continues.
			c.logger.Debug().Str("error", frame.Error).Msg("Sidecar inference error")
		}
	}
}
