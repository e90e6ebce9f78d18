package domain

import (
	"errors"
	"testing"
)

func TestParseExpressionLabelRoundTrip(t *testing.T) {
	t.Parallel()

	for _, label := range Labels() {
		parsed, err := ParseExpressionLabel(label.String())
		if err != nil {
			t.Fatalf("parse %s: %v", label, err)
		}
		if parsed != label {
			t.Fatalf("expected %s, got %s", label, parsed)
		}
	}
}

func TestParseExpressionLabelRejectsUnknown(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "Happy", "joy", "unknown"} {
		label, err := ParseExpressionLabel(name)
		if !errors.Is(err, ErrUnknownExpression) {
			t.Fatalf("expected ErrUnknownExpression for %q, got %v", name, err)
		}
		if label.Valid() {
			t.Fatalf("expected invalid label for %q", name)
		}
	}
}

func TestExpressionLabelValid(t *testing.T) {
	t.Parallel()

	if ExpressionUnknown.Valid() {
		t.Fatalf("zero label must not be valid")
	}
	if ExpressionLabel(200).Valid() {
		t.Fatalf("out of range label must not be valid")
	}
	if len(Labels()) != 7 {
		t.Fatalf("expected seven labels, got %d", len(Labels()))
	}
}

func TestExpressionLabelText(t *testing.T) {
	t.Parallel()

	text, err := ExpressionSurprised.MarshalText()
	if err != nil || string(text) != "surprised" {
		t.Fatalf("unexpected marshal result: %q %v", text, err)
	}

	var label ExpressionLabel
	if err := label.UnmarshalText([]byte("fearful")); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if label != ExpressionFearful {
		t.Fatalf("unexpected label: %s", label)
	}
	if _, err := ExpressionUnknown.MarshalText(); err == nil {
		t.Fatalf("expected error marshalling unknown label")
	}
}

func TestCaretValidAndClamp(t *testing.T) {
	t.Parallel()

	if !Collapsed(3).Valid(3) {
		t.Fatalf("caret at end must be valid")
	}
	if (Caret{Start: 2, End: 1}).Valid(5) {
		t.Fatalf("inverted caret must be invalid")
	}
	if (Caret{Start: -1, End: 0}).Valid(5) {
		t.Fatalf("negative caret must be invalid")
	}

	got := Caret{Start: 9, End: 12}.Clamp(4)
	if got != Collapsed(4) {
		t.Fatalf("unexpected clamp result: %+v", got)
	}
	got = Caret{Start: -3, End: 2}.Clamp(4)
	if got != (Caret{Start: 0, End: 2}) {
		t.Fatalf("unexpected clamp result: %+v", got)
	}
}

func TestTranscriptEventCommittable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event TranscriptEvent
		want  bool
	}{
		{TranscriptEvent{IsFinal: true, SpeechFinal: true}, true},
		{TranscriptEvent{IsFinal: true, SpeechFinal: false}, false},
		{TranscriptEvent{IsFinal: false, SpeechFinal: true}, false},
		{TranscriptEvent{}, false},
	}
	for _, tc := range cases {
		if got := tc.event.Committable(); got != tc.want {
			t.Fatalf("unexpected committable for %+v: %v", tc.event, got)
		}
	}
}
