package emoji

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emotext/internal/domain"
)

func TestResolveSkipsNeutralAndInvalid(t *testing.T) {
	for _, label := range []domain.ExpressionLabel{
		domain.ExpressionNeutral,
		domain.ExpressionUnknown,
		domain.ExpressionLabel(99),
	} {
		glyph, ok := Resolve(label)
		assert.False(t, ok, "label %d", label)
		assert.Empty(t, glyph)
	}
}

func TestResolveFixedTableIsDeterministic(t *testing.T) {
	want := map[domain.ExpressionLabel]string{
		domain.ExpressionHappy:     "🙂",
		domain.ExpressionSad:       "🙁",
		domain.ExpressionAngry:     "😠",
		domain.ExpressionFearful:   "😨",
		domain.ExpressionDisgusted: "😖",
		domain.ExpressionSurprised: "😯",
	}

	for i := 0; i < 3; i++ {
		for label, glyph := range want {
			got, ok := Resolve(label)
			require.True(t, ok, label.String())
			assert.Equal(t, glyph, got, label.String())
		}
	}
}

func TestEveryLabelHasGlyphAndIcon(t *testing.T) {
	for _, label := range domain.Labels() {
		assert.NotEmpty(t, Glyph(label), label.String())
		assert.NotEmpty(t, IconName(label), label.String())
	}
	assert.Empty(t, Glyph(domain.ExpressionUnknown))
	assert.Empty(t, IconName(domain.ExpressionUnknown))
}

func TestIconsExcludeNeutral(t *testing.T) {
	icons := Icons()
	require.Len(t, icons, 6)
	for _, icon := range icons {
		assert.NotEqual(t, domain.ExpressionNeutral, icon.Label)
	}
	assert.Equal(t, "slightly-smiling-face", icons[0].Name)
}

func TestExpandShortcodes(t *testing.T) {
	cases := map[string]string{
		"hi ::happy:: there":        "hi 🙂 there",
		"::neutral::calm":           "calm",
		"::sad::::angry::":          "🙁😠",
		"keep ::bogus:: as written": "keep ::bogus:: as written",
		"no markup":                 "no markup",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExpandShortcodes(in), in)
	}
}
