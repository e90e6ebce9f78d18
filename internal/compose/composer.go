// Package compose writes expression glyphs and rewritten transcripts into the
// shared document.
package compose

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"emotext/internal/bus"
	"emotext/internal/document"
	"emotext/internal/domain"
	"emotext/internal/emoji"
	"emotext/internal/observe"
	"emotext/internal/ports"
)

// LabelSource delivers settled expression labels.
type LabelSource interface {
	Subscribe(fn func(domain.ExpressionLabel)) *bus.Subscription
}

// Composer inserts glyphs for expressions, whether detected or clicked.
type Composer struct {
	doc     *document.State
	events  ports.EventSink
	metrics *observe.Metrics
	logger  zerolog.Logger
}

func NewComposer(doc *document.State, events ports.EventSink, metrics *observe.Metrics, logger zerolog.Logger) *Composer {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Composer{
		doc:     doc,
		events:  events,
		metrics: metrics,
		logger:  logger.With().Str("component", "composer").Logger(),
	}
}

// Follow inserts a glyph for every label the source settles on.
func (c *Composer) Follow(source LabelSource) *bus.Subscription {
	return source.Subscribe(func(label domain.ExpressionLabel) {
		c.events.ExpressionSettled(label)
		c.InsertExpression(label, observe.SourceExpression)
	})
}

// InsertExpression inserts the glyph for label at the caret. Neutral and
// unknown labels insert nothing. Insertion failures are logged and
// swallowed; ok reports whether text was inserted.
func (c *Composer) InsertExpression(label domain.ExpressionLabel, source string) (domain.Caret, bool) {
	ctx := context.Background()

	glyph, ok := emoji.Resolve(label)
	if !ok {
		c.metrics.RecordInsertion(ctx, source, "no_glyph")
		return domain.Caret{}, false
	}

	caret, err := c.doc.Insert(glyph)
	if err != nil {
		c.logger.Warn().Err(err).Str("label", label.String()).Str("source", source).Msg("Skipping expression insertion")
		c.metrics.RecordInsertion(ctx, source, "skipped")
		return domain.Caret{}, false
	}
	c.metrics.RecordInsertion(ctx, source, "ok")
	return caret, true
}

// TranscriptRewriter applies the rules engine and then expands ::label::
// shortcodes, so rules can turn spoken phrases into glyphs.
type TranscriptRewriter struct {
	Rules ports.RulesEngine
}

func (r TranscriptRewriter) Apply(text string) (string, error) {
	out := text
	if r.Rules != nil {
		var err error
		out, err = r.Rules.Apply(text)
		if err != nil {
			return "", fmt.Errorf("rules: %w", err)
		}
	}
	return emoji.ExpandShortcodes(out), nil
}
