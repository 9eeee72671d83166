package bootstrap

import (
	"fmt"
	"os/exec"
	"strings"

	"wordlens/internal/audio"
	"wordlens/internal/config"
	"wordlens/internal/logging"
	"wordlens/internal/ports"
	"wordlens/internal/providers/deepgram"
	"wordlens/internal/rules"
	"wordlens/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.CaptionController
	Config     config.Config

	// Supported is false when the environment cannot run recognition at
	// all (missing credentials or recorder binary). UnsupportedReason
	// carries the one-time user-visible explanation.
	Supported         bool
	UnsupportedReason string
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logging.Setup(cfg.LogLevel)

	filter, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	capture := audio.NewCapture(cfg.Audio.RecorderCommand)
	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}

	recognizer := deepgram.NewRecognizer(
		deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
			ChunkSize:   cfg.Caption.ChunkSize,
		},
		capture,
		audioCfg,
	)

	controller := usecase.NewCaptionController(
		recognizer,
		audio.NewMicProbe(capture, audioCfg),
		filter,
		events,
		usecase.Config{
			Recognition: ports.RecognitionConfig{
				Language:       cfg.Deepgram.Language,
				Continuous:     true,
				InterimResults: true,
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
			},
			RestartDelay: cfg.Caption.RestartDelay,
			WordHold:     cfg.Caption.WordHold,
		},
	)

	supported, reason := checkSupport(cfg)
	return Services{
		Controller:        controller,
		Config:            cfg,
		Supported:         supported,
		UnsupportedReason: reason,
	}, nil
}

func checkSupport(cfg config.Config) (bool, string) {
	var missing []string
	if strings.TrimSpace(cfg.Deepgram.APIKey) == "" {
		missing = append(missing, "DEEPGRAM_API_KEY is not set")
	}
	if _, err := exec.LookPath(cfg.Audio.RecorderCommand); err != nil {
		missing = append(missing, fmt.Sprintf("recorder command %q not found", cfg.Audio.RecorderCommand))
	}
	if len(missing) > 0 {
		return false, "speech recognition unavailable: " + strings.Join(missing, "; ")
	}
	return true, ""
}
