// Package vision tracks the face detection models the view runs and turns
// their per-frame scores into expression labels.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"emotext/internal/bus"
)

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrModelMissing = errors.New("model artifact missing")
)

// URLPrefix is where the view fetches model artifacts from.
const URLPrefix = "/models/"

// Artifact is one model the view loads before detection can start.
type Artifact struct {
	Name     string
	Manifest string
}

// Artifacts lists the three models in load order.
var Artifacts = []Artifact{
	{Name: "ssd_mobilenetv1", Manifest: "ssd_mobilenetv1_model-weights_manifest.json"},
	{Name: "face_landmark_68", Manifest: "face_landmark_68_model-weights_manifest.json"},
	{Name: "face_expression", Manifest: "face_expression_model-weights_manifest.json"},
}

// Models verifies the artifacts on disk, serves them to the view and
// reports readiness once the view has loaded all of them.
type Models struct {
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	loaded map[string]bool
	ready  bool

	readyHub *bus.Hub[struct{}]
}

func NewModels(dir string, logger zerolog.Logger) *Models {
	return &Models{
		dir:      dir,
		logger:   logger.With().Str("component", "models").Logger(),
		loaded:   make(map[string]bool, len(Artifacts)),
		readyHub: bus.NewHub[struct{}](),
	}
}

// Dir returns the artifact directory.
func (m *Models) Dir() string {
	return m.dir
}

// Verify checks every manifest and the weight shards it references.
func (m *Models) Verify(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, artifact := range Artifacts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return m.verifyArtifact(artifact)
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error().Err(err).Str("dir", m.dir).Msg("Model verification failed")
		return err
	}
	m.logger.Info().Str("dir", m.dir).Msg("Model artifacts verified")
	return nil
}

type weightsManifest []struct {
	Paths []string `json:"paths"`
}

func (m *Models) verifyArtifact(artifact Artifact) error {
	path := filepath.Join(m.dir, artifact.Manifest)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrModelMissing, artifact.Manifest)
		}
		return fmt.Errorf("failed to read %s: %w", artifact.Manifest, err)
	}

	var manifest weightsManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", artifact.Manifest, err)
	}
	for _, group := range manifest {
		for _, shard := range group.Paths {
			if _, err := os.Stat(filepath.Join(m.dir, filepath.Clean(shard))); err != nil {
				return fmt.Errorf("%w: %s shard %s", ErrModelMissing, artifact.Name, shard)
			}
		}
	}
	return nil
}

// MarkLoaded records that the view finished loading the named model. Once
// all three are loaded, OnReady subscribers fire exactly once.
func (m *Models) MarkLoaded(name string) error {
	known := false
	for _, artifact := range Artifacts {
		if artifact.Name == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	m.mu.Lock()
	if m.ready {
		m.mu.Unlock()
		return nil
	}
	m.loaded[name] = true
	if len(m.loaded) < len(Artifacts) {
		m.mu.Unlock()
		m.logger.Debug().Str("model", name).Msg("Model loaded")
		return nil
	}
	m.ready = true
	m.mu.Unlock()

	m.logger.Info().Msg("All models loaded")
	m.readyHub.Publish(struct{}{})
	m.readyHub.Clear()
	return nil
}

// Ready reports whether every model has loaded.
func (m *Models) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// OnReady registers fn for the moment all models are loaded. If that already
// happened fn runs immediately.
func (m *Models) OnReady(fn func()) *bus.Subscription {
	m.mu.Lock()
	ready := m.ready
	var sub *bus.Subscription
	if !ready {
		sub = m.readyHub.Subscribe(func(struct{}) { fn() })
	}
	m.mu.Unlock()

	if ready {
		fn()
	}
	return sub
}

// Handler serves the artifact directory under URLPrefix.
func (m *Models) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(m.dir)))
}
