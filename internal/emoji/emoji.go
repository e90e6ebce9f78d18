// Package emoji maps expression labels to the glyphs inserted into text.
package emoji

import (
	"regexp"

	"github.com/samber/lo"

	"emotext/internal/domain"
)

// Glyph returns the display glyph for a label, including neutral.
func Glyph(label domain.ExpressionLabel) string {
	switch label {
	case domain.ExpressionNeutral:
		return "😐"
	case domain.ExpressionHappy:
		return "🙂"
	case domain.ExpressionSad:
		return "🙁"
	case domain.ExpressionAngry:
		return "😠"
	case domain.ExpressionFearful:
		return "😨"
	case domain.ExpressionDisgusted:
		return "😖"
	case domain.ExpressionSurprised:
		return "😯"
	default:
		return ""
	}
}

// Resolve returns the glyph to insert for label. ok is false for neutral
// and for anything outside the label set; callers skip insertion then.
func Resolve(label domain.ExpressionLabel) (string, bool) {
	if label == domain.ExpressionNeutral || !label.Valid() {
		return "", false
	}
	glyph := Glyph(label)
	return glyph, glyph != ""
}

// IconName returns the icon asset name the view uses for label.
func IconName(label domain.ExpressionLabel) string {
	switch label {
	case domain.ExpressionNeutral:
		return "neutral"
	case domain.ExpressionHappy:
		return "slightly-smiling-face"
	case domain.ExpressionSad:
		return "slightly-frowning-face"
	case domain.ExpressionAngry:
		return "angry"
	case domain.ExpressionFearful:
		return "fearful-face"
	case domain.ExpressionDisgusted:
		return "confounded-face"
	case domain.ExpressionSurprised:
		return "hushed-face"
	default:
		return ""
	}
}

// Icon describes one clickable entry in the view's icon row.
type Icon struct {
	Label domain.ExpressionLabel `json:"label"`
	Name  string                 `json:"name"`
	Glyph string                 `json:"glyph"`
}

// Icons lists the insertable labels in classifier order.
func Icons() []Icon {
	return lo.FilterMap(domain.Labels(), func(label domain.ExpressionLabel, _ int) (Icon, bool) {
		glyph, ok := Resolve(label)
		return Icon{Label: label, Name: IconName(label), Glyph: glyph}, ok
	})
}

var shortcodePattern = regexp.MustCompile(`::([a-z]+)::`)

// ExpandShortcodes replaces ::label:: markup with glyphs. ::neutral:: is
// removed and unknown names are left as written.
func ExpandShortcodes(text string) string {
	return shortcodePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := shortcodePattern.FindStringSubmatch(match)[1]
		label, err := domain.ParseExpressionLabel(name)
		if err != nil {
			return match
		}
		glyph, _ := Resolve(label)
		return glyph
	})
}
