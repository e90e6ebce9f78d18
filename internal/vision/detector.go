package vision

import (
	"math"

	"github.com/rs/zerolog"

	"emotext/internal/domain"
)

// DefaultMinConfidence is the score below which a frame counts as no face.
const DefaultMinConfidence = 0.5

// Detection is one frame's expression scores keyed by classifier name.
type Detection map[string]float64

// LabelSink receives raw labels, one per detected change.
type LabelSink interface {
	Push(label domain.ExpressionLabel)
}

// Detector picks the dominant expression of each frame and forwards it.
type Detector struct {
	sink          LabelSink
	minConfidence float64
	logger        zerolog.Logger
}

func NewDetector(sink LabelSink, minConfidence float64, logger zerolog.Logger) *Detector {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	return &Detector{
		sink:          sink,
		minConfidence: minConfidence,
		logger:        logger.With().Str("component", "detector").Logger(),
	}
}

// Observe handles one frame. Frames without a face or without a confident
// label are skipped.
func (d *Detector) Observe(detection Detection) (domain.ExpressionLabel, bool) {
	label, score, ok := BestLabel(detection, d.minConfidence)
	if !ok {
		return domain.ExpressionUnknown, false
	}
	d.logger.Trace().Str("label", label.String()).Float64("score", score).Msg("Frame classified")
	d.sink.Push(label)
	return label, true
}

// BestLabel returns the highest scoring known label. Ties go to the label
// that comes first in domain.Labels. Unknown names and non-finite scores are
// ignored.
func BestLabel(detection Detection, minConfidence float64) (domain.ExpressionLabel, float64, bool) {
	best := domain.ExpressionUnknown
	bestScore := math.Inf(-1)
	for _, label := range domain.Labels() {
		score, ok := detection[label.String()]
		if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	if best == domain.ExpressionUnknown || bestScore < minConfidence {
		return domain.ExpressionUnknown, 0, false
	}
	return best, bestScore, true
}
