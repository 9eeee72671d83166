package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"wordlens/internal/bootstrap"
	"wordlens/internal/config"
	"wordlens/internal/domain"
	"wordlens/internal/usecase"
)

const (
	eventWord    = "wordlens:word"
	eventClear   = "wordlens:clear"
	eventSession = "wordlens:session"
	eventError   = "wordlens:error"
)

// App is the Wails application root. It implements ports.EventSink by
// forwarding caption events to the frontend render target.
type App struct {
	ctx context.Context

	controller *usecase.CaptionController
	cfg        config.Config
	bootErr    error

	mu                sync.Mutex
	supported         bool
	unsupportedReason string
	previewEnabled    bool
	camError          string
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.CaptionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller

	a.mu.Lock()
	a.supported = services.Supported
	a.unsupportedReason = services.UnsupportedReason
	a.mu.Unlock()

	if !services.Supported {
		a.ListenStateChanged(domain.ListenStateError, domain.ListenReasonUnsupported)
		return
	}
	a.ListenStateChanged(domain.ListenStateIdle, domain.ListenReasonStartup)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.Close()
	}
}

// SetListening toggles the always-listening caption session.
func (a *App) SetListening(enabled bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	a.mu.Lock()
	supported := a.supported
	reason := a.unsupportedReason
	a.mu.Unlock()
	if !supported {
		return a.GetStatus(), fmt.Errorf("%s", reason)
	}

	a.controller.SetEnabled(a.ctx, enabled)
	return a.GetStatus(), nil
}

// SetPreviewEnabled toggles the camera preview feed. The preview itself is
// owned by the frontend; the backend only tracks the flag for status.
func (a *App) SetPreviewEnabled(enabled bool) {
	a.mu.Lock()
	a.previewEnabled = enabled
	if enabled {
		a.camError = ""
	}
	a.mu.Unlock()
}

// ReportPreviewError records a camera failure reported by the frontend.
// Camera failures never affect the speech session's lifecycle.
func (a *App) ReportPreviewError(detail string) {
	a.mu.Lock()
	a.camError = detail
	a.mu.Unlock()
	a.CaptionError(domain.ErrorCodeCamera, detail)
}

// GetStatus returns the merged caption and preview status.
func (a *App) GetStatus() domain.Status {
	a.mu.Lock()
	supported := a.supported
	reason := a.unsupportedReason
	preview := a.previewEnabled
	camError := a.camError
	a.mu.Unlock()

	if a.controller == nil {
		status := domain.Status{State: domain.ListenStateIdle, Supported: false}
		if a.bootErr != nil {
			status.State = domain.ListenStateError
			status.Message = a.bootErr.Error()
		}
		return status
	}

	status := a.controller.Status()
	status.Supported = supported
	status.PreviewEnabled = preview
	status.CamError = camError
	if !supported {
		status.State = domain.ListenStateError
		status.Message = reason
	}
	return status
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":     "Deepgram",
		"model":        a.cfg.Deepgram.Model,
		"language":     a.cfg.Deepgram.Language,
		"rulesFile":    a.cfg.Rules.Path,
		"wordHold":     a.cfg.Caption.WordHold.String(),
		"restartDelay": a.cfg.Caption.RestartDelay.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ListenStateChanged emits session lifecycle updates to the frontend.
func (a *App) ListenStateChanged(state domain.ListenState, reason domain.ListenStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": listenReasonMessage(reason),
	})
}

// WordShown emits the freshly installed word token.
func (a *App) WordShown(token domain.WordToken) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventWord, map[string]string{
		"id":   token.ID,
		"text": token.Text,
	})
}

// WordCleared tells the frontend the display slot expired.
func (a *App) WordCleared(id string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventClear, map[string]string{"id": id})
}

// CaptionError emits backend errors to the UI.
func (a *App) CaptionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func listenReasonMessage(reason domain.ListenStateReason) string {
	switch reason {
	case domain.ListenReasonStartup:
		return "Ready"
	case domain.ListenReasonEnabled:
		return "Starting to listen..."
	case domain.ListenReasonListening:
		return "Listening"
	case domain.ListenReasonRestarted:
		return "Listening resumed"
	case domain.ListenReasonDisabled:
		return "Listening stopped"
	case domain.ListenReasonPermissionDenied:
		return "Microphone access denied"
	case domain.ListenReasonUnsupported:
		return "Speech recognition unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone access denied"
	case domain.ErrorCodeFilter:
		return "Word filter failed"
	case domain.ErrorCodeCamera:
		return "Camera preview failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
