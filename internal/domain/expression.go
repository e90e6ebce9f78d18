package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownExpression = errors.New("unknown expression label")

// ExpressionLabel is one of the fixed categories the expression classifier
// produces. The zero value is not a label.
type ExpressionLabel uint8

const (
	ExpressionUnknown ExpressionLabel = iota
	ExpressionNeutral
	ExpressionHappy
	ExpressionSad
	ExpressionAngry
	ExpressionFearful
	ExpressionDisgusted
	ExpressionSurprised

	expressionCount
)

var expressionNames = [expressionCount]string{
	ExpressionUnknown:   "",
	ExpressionNeutral:   "neutral",
	ExpressionHappy:     "happy",
	ExpressionSad:       "sad",
	ExpressionAngry:     "angry",
	ExpressionFearful:   "fearful",
	ExpressionDisgusted: "disgusted",
	ExpressionSurprised: "surprised",
}

// Labels returns every valid label in classifier order.
func Labels() []ExpressionLabel {
	return []ExpressionLabel{
		ExpressionNeutral,
		ExpressionHappy,
		ExpressionSad,
		ExpressionAngry,
		ExpressionFearful,
		ExpressionDisgusted,
		ExpressionSurprised,
	}
}

// ParseExpressionLabel maps a classifier name to its label.
func ParseExpressionLabel(name string) (ExpressionLabel, error) {
	for _, label := range Labels() {
		if expressionNames[label] == name {
			return label, nil
		}
	}
	return ExpressionUnknown, fmt.Errorf("%w: %q", ErrUnknownExpression, name)
}

func (l ExpressionLabel) Valid() bool {
	return l > ExpressionUnknown && l < expressionCount
}

func (l ExpressionLabel) String() string {
	if !l.Valid() {
		return "unknown"
	}
	return expressionNames[l]
}

// MarshalText encodes the label with its classifier name.
func (l ExpressionLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, ErrUnknownExpression
	}
	return []byte(expressionNames[l]), nil
}

// UnmarshalText decodes a classifier name.
func (l *ExpressionLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseExpressionLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ExpressionEvent is a single best-guess result from the detector.
type ExpressionEvent struct {
	Label      ExpressionLabel `json:"label"`
	Confidence float64         `json:"confidence"`
	At         time.Time       `json:"at"`
}
