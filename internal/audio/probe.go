package audio

import (
	"context"
	"fmt"

	"wordlens/internal/ports"
)

// MicProbe verifies microphone access by briefly opening a capture session.
// A failure to open the device is the desktop equivalent of a denied
// microphone permission.
type MicProbe struct {
	capture ports.AudioCapture
	cfg     ports.AudioConfig
}

func NewMicProbe(capture ports.AudioCapture, cfg ports.AudioConfig) *MicProbe {
	return &MicProbe{capture: capture, cfg: cfg}
}

func (p *MicProbe) Probe(ctx context.Context) error {
	session, err := p.capture.Start(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	return session.Stop()
}
