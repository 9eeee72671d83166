package main

import (
	"errors"
	"testing"

	"wordlens/internal/domain"
)

func TestListenReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ListenStateReason]string{
		domain.ListenReasonStartup:          "Ready",
		domain.ListenReasonEnabled:          "Starting to listen...",
		domain.ListenReasonListening:        "Listening",
		domain.ListenReasonRestarted:        "Listening resumed",
		domain.ListenReasonDisabled:         "Listening stopped",
		domain.ListenReasonPermissionDenied: "Microphone access denied",
		domain.ListenReasonUnsupported:      "Speech recognition unavailable",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := listenReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := listenReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:    "Startup failed",
		domain.ErrorCodePermission: "Microphone access denied",
		domain.ErrorCodeFilter:     "Word filter failed",
		domain.ErrorCodeCamera:     "Camera preview failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.ListenStateIdle || status.Supported {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.ListenStateError || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
}

func TestPreviewErrorTracking(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.SetPreviewEnabled(true)
	app.ReportPreviewError("camera in use")

	app.mu.Lock()
	camError := app.camError
	preview := app.previewEnabled
	app.mu.Unlock()
	if camError != "camera in use" || !preview {
		t.Fatalf("unexpected preview state: %q %t", camError, preview)
	}

	app.SetPreviewEnabled(true)
	app.mu.Lock()
	cleared := app.camError
	app.mu.Unlock()
	if cleared != "" {
		t.Fatalf("expected camera error cleared on preview restart, got %q", cleared)
	}
}
