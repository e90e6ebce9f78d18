package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"emotext/internal/bootstrap"
	"emotext/internal/document"
	"emotext/internal/domain"
	"emotext/internal/emoji"
	"emotext/internal/observe"
	"emotext/internal/ports"
	"emotext/internal/vision"
)

const (
	eventDocument   = "emotext:document"
	eventConnection = "emotext:connection"
	eventCapture    = "emotext:capture"
	eventCaption    = "emotext:caption"
	eventExpression = "emotext:expression"
	eventReady      = "emotext:ready"
	eventError      = "emotext:error"
)

var errNotInitialized = errors.New("application is not initialized")

var _ ports.EventSink = (*App)(nil)

// App is the Wails application root.
type App struct {
	ctx context.Context

	mu        sync.Mutex
	services  *bootstrap.Services
	bootErr   error
	clipboard ports.Clipboard
	emit      func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{clipboard: wailsClipboard{}, emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.mu.Lock()
		a.bootErr = err
		a.mu.Unlock()
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.mu.Lock()
	a.services = services
	a.mu.Unlock()
	services.Start(ctx)
}

func (a *App) shutdown(ctx context.Context) {
	services, err := a.ready()
	if err != nil {
		return
	}
	if err := services.Shutdown(ctx); err != nil {
		fmt.Printf("emotext: shutdown: %v\n", err)
	}
}

// GetState returns the snapshot the view renders on load.
func (a *App) GetState() domain.ViewState {
	services, err := a.ready()
	if err != nil {
		return domain.ViewState{
			Loading:    true,
			Connection: domain.ConnectionClosed,
			Capture:    domain.CaptureIdle,
		}
	}
	return domain.ViewState{
		Loading:    !services.Models.Ready(),
		Document:   services.Document.Snapshot(),
		Connection: services.Speech.State(),
		Capture:    services.Microphone.State(),
	}
}

// ModelLoaded records that the view finished loading one detection model.
func (a *App) ModelLoaded(name string) error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	if err := services.Models.MarkLoaded(name); err != nil {
		a.SessionError(domain.ErrorCodeModels, err.Error())
		return err
	}
	return nil
}

// ReportExpressions feeds one frame of classifier scores to the detector.
// Frames arriving before the models are ready are ignored.
func (a *App) ReportExpressions(scores map[string]float64) {
	services, err := a.ready()
	if err != nil || !services.Models.Ready() {
		return
	}
	services.Detector.Observe(vision.Detection(scores))
}

// InsertExpression handles an icon click. The caret from the view is applied
// first so the glyph lands where the user last was. A stale caret makes the
// click a no-op.
func (a *App) InsertExpression(label string, start int, end int) (domain.Document, error) {
	services, err := a.ready()
	if err != nil {
		return domain.Document{}, err
	}
	parsed, err := domain.ParseExpressionLabel(label)
	if err != nil {
		return services.Document.Snapshot(), err
	}
	if err := services.Document.SetCaret(domain.Caret{Start: start, End: end}); err != nil {
		if errors.Is(err, document.ErrInvalidCaret) {
			log := services.Logger.Component("app")
			log.Warn().Err(err).
				Int("start", start).Int("end", end).Msg("Skipped icon insertion")
			return services.Document.Snapshot(), nil
		}
		return services.Document.Snapshot(), err
	}
	services.Composer.InsertExpression(parsed, observe.SourceIcon)
	return services.Document.Snapshot(), nil
}

// SetText mirrors a textarea edit into the shared document.
func (a *App) SetText(content string, start int, end int) error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	services.Document.Edit(content, domain.Caret{Start: start, End: end})
	return nil
}

// SetCaret mirrors a selection change.
func (a *App) SetCaret(start int, end int) error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	if err := services.Document.SetCaret(domain.Caret{Start: start, End: end}); err != nil {
		if errors.Is(err, document.ErrInvalidCaret) {
			return nil
		}
		return err
	}
	return nil
}

// Connect opens a transcription session.
func (a *App) Connect() error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	return services.Speech.Connect(a.ctx)
}

// Disconnect closes the transcription session.
func (a *App) Disconnect() error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	return services.Speech.Disconnect()
}

// PauseCapture stops the microphone without closing the session.
func (a *App) PauseCapture() error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	return services.Microphone.Stop()
}

// ResumeCapture restarts the microphone.
func (a *App) ResumeCapture() error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	if err := services.Microphone.Start(a.ctx); err != nil {
		a.SessionError(domain.ErrorCodeAudioDevice, err.Error())
		return err
	}
	return nil
}

// CopyText writes the document into the system clipboard.
func (a *App) CopyText() error {
	services, err := a.ready()
	if err != nil {
		return err
	}
	text := services.Document.Snapshot().Content
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := a.clipboard.SetText(a.ctx, text); err != nil {
		a.SessionError(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// Icons returns the icon row.
func (a *App) Icons() []emoji.Icon {
	return emoji.Icons()
}

func (a *App) ready() (*bootstrap.Services, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bootErr != nil {
		return nil, a.bootErr
	}
	if a.services == nil {
		return nil, errNotInitialized
	}
	return a.services, nil
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// DocumentChanged emits content and caret so the view can restore selection.
func (a *App) DocumentChanged(doc domain.Document) {
	a.send(eventDocument, doc)
}

// ConnectionStateChanged emits the connection lifecycle.
func (a *App) ConnectionStateChanged(state domain.ConnectionState) {
	a.send(eventConnection, map[string]string{"state": string(state)})
}

// CaptureStateChanged emits the microphone lifecycle.
func (a *App) CaptureStateChanged(state domain.CaptureState) {
	a.send(eventCapture, map[string]string{"state": string(state)})
}

// Caption emits the live caption. An empty text clears it.
func (a *App) Caption(text string) {
	a.send(eventCaption, map[string]string{"text": text})
}

// ExpressionSettled emits the expression that was just inserted.
func (a *App) ExpressionSettled(label domain.ExpressionLabel) {
	a.send(eventExpression, map[string]string{
		"label": label.String(),
		"icon":  emoji.IconName(label),
	})
}

// ModelsReady tells the view to drop its loading indicator.
func (a *App) ModelsReady() {
	a.send(eventReady, struct{}{})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeModels:
		return "Expression models unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
