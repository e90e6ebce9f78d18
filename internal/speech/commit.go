package speech

import (
	"context"

	"emotext/internal/domain"
	"emotext/internal/observe"
)

// handleTranscript updates the caption and commits finished utterances into
// the document.
func (m *Manager) handleTranscript(active *activeSession, event domain.TranscriptEvent) {
	if event.Kind == domain.TranscriptKindUtteranceEnd {
		m.logger.Debug().Str("session", active.id).Msg("Utterance ended")
		return
	}
	if event.Text == "" {
		return
	}

	m.events.Caption(event.Text)
	if !event.Committable() {
		return
	}

	m.commit(active, event.Text)
	active.caption.Reset()
}

func (m *Manager) commit(active *activeSession, raw string) {
	ctx := context.Background()

	text, err := m.rules.Apply(raw)
	if err != nil {
		m.logger.Warn().Err(err).Str("session", active.id).Msg("Rules failed, transcript not inserted")
		m.events.SessionError(domain.ErrorCodeRules, err.Error())
		m.metrics.RecordInsertion(ctx, observe.SourceTranscript, "rules_failed")
		return
	}
	if text == "" {
		m.metrics.RecordInsertion(ctx, observe.SourceTranscript, "empty")
		return
	}

	if _, err := m.target.Insert(text); err != nil {
		m.logger.Warn().Err(err).Str("session", active.id).Msg("Skipping transcript insertion")
		m.metrics.RecordInsertion(ctx, observe.SourceTranscript, "skipped")
		return
	}
	m.metrics.RecordInsertion(ctx, observe.SourceTranscript, "ok")
}
