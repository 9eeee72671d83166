package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"wordlens/internal/domain"
	"wordlens/internal/logging"
	"wordlens/internal/ports"
)

// Config controls caption session behavior.
type Config struct {
	Recognition  ports.RecognitionConfig
	RestartDelay time.Duration
	WordHold     time.Duration
}

// CaptionController keeps one logical "always listening" recognition session
// alive while enabled: natural engine stops and recoverable errors trigger a
// debounced restart, permission denials are absorbing until the user toggles
// listening off and on again.
type CaptionController struct {
	recognizer ports.Recognizer
	mic        ports.MicrophoneProbe
	display    *WordDisplay
	stream     *wordStream
	events     ports.EventSink
	cfg        Config

	mu               sync.Mutex
	enabled          bool
	running          bool
	permissionDenied bool
	granted          bool
	closed           bool
	generation       int
	current          ports.RecognitionSession
	restart          *time.Timer
}

func NewCaptionController(
	recognizer ports.Recognizer,
	mic ports.MicrophoneProbe,
	filter ports.WordFilter,
	events ports.EventSink,
	cfg Config,
) *CaptionController {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 120 * time.Millisecond
	}
	display := NewWordDisplay(events, cfg.WordHold)
	return &CaptionController{
		recognizer: recognizer,
		mic:        mic,
		display:    display,
		stream:     newWordStream(filter, display, events),
		events:     events,
		cfg:        cfg,
	}
}

// SetEnabled transitions the externally-visible listening toggle. Enabling
// after a permission denial clears the denial and probes the microphone
// again; disabling stops the live session and cancels any pending restart.
func (c *CaptionController) SetEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	if c.closed || c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled

	if !enabled {
		c.cancelRestartLocked()
		session := c.current
		c.current = nil
		c.running = false
		c.generation++
		c.mu.Unlock()

		if session != nil {
			_ = session.Stop()
		}
		c.events.ListenStateChanged(domain.ListenStateIdle, domain.ListenReasonDisabled)
		return
	}

	// A fresh user gesture clears a prior denial.
	c.permissionDenied = false
	needProbe := !c.granted
	generation := c.generation
	c.mu.Unlock()

	c.events.ListenStateChanged(domain.ListenStateStarting, domain.ListenReasonEnabled)
	go c.startSession(ctx, generation, needProbe, domain.ListenReasonListening)
}

// Status returns the observable caption state.
func (c *CaptionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := domain.ListenStateIdle
	switch {
	case c.permissionDenied:
		state = domain.ListenStateError
	case c.running:
		state = domain.ListenStateListening
	case c.enabled:
		state = domain.ListenStateStarting
	}
	return domain.Status{
		State:            state,
		Running:          c.running,
		Supported:        true,
		PermissionDenied: c.permissionDenied,
	}
}

// Close stops everything; the controller cannot be reused afterwards.
func (c *CaptionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.enabled = false
	c.cancelRestartLocked()
	session := c.current
	c.current = nil
	c.running = false
	c.generation++
	c.mu.Unlock()

	if session != nil {
		_ = session.Stop()
	}
	c.display.Close()
}

func (c *CaptionController) startSession(ctx context.Context, generation int, probe bool, reason domain.ListenStateReason) {
	if probe {
		if err := c.mic.Probe(ctx); err != nil {
			c.markPermissionDenied(generation, err.Error())
			return
		}
		c.mu.Lock()
		c.granted = true
		c.mu.Unlock()
	}

	session, err := c.recognizer.Start(ctx, c.cfg.Recognition)
	if err != nil {
		c.mu.Lock()
		stale := c.closed || !c.enabled || generation != c.generation
		c.mu.Unlock()
		if !stale {
			c.handleOutcome(ctx, generation, err)
		}
		return
	}

	c.mu.Lock()
	if c.closed || !c.enabled || generation != c.generation {
		c.mu.Unlock()
		_ = session.Stop()
		return
	}
	previous := c.current
	c.current = session
	c.running = true
	c.mu.Unlock()

	// Never two live sessions.
	if previous != nil {
		_ = previous.Stop()
	}

	c.events.ListenStateChanged(domain.ListenStateListening, reason)
	go c.consume(ctx, generation, session)
}

func (c *CaptionController) consume(ctx context.Context, generation int, session ports.RecognitionSession) {
	for event := range session.Results() {
		c.stream.OnTranscript(event)
	}
	err := session.Wait()

	c.mu.Lock()
	if c.closed || c.current != session {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.running = false
	enabled := c.enabled
	c.mu.Unlock()

	if !enabled {
		return
	}
	c.handleOutcome(ctx, generation, err)
}

// handleOutcome classifies how a session ended and decides between a
// debounced restart and an absorbing permission-denied state.
func (c *CaptionController) handleOutcome(ctx context.Context, generation int, err error) {
	var recErr *domain.RecognitionError
	switch {
	case err == nil:
		// Natural end; the engine stopped itself after silence.
	case errors.As(err, &recErr):
		if recErr.Code.PermissionDenied() {
			c.markPermissionDenied(generation, recErr.Detail)
			return
		}
		if !recognizedCode(recErr.Code) {
			log := logging.L()
			log.Warn().
				Str("code", string(recErr.Code)).
				Str("detail", recErr.Detail).
				Msg("unrecognized recognition code, restarting anyway")
		}
	default:
		log := logging.L()
		log.Warn().Err(err).Msg("unclassified session failure, restarting anyway")
	}

	c.scheduleRestart(ctx, generation)
}

func (c *CaptionController) markPermissionDenied(generation int, detail string) {
	c.mu.Lock()
	if c.closed || generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.permissionDenied = true
	c.granted = false
	c.running = false
	c.current = nil
	c.mu.Unlock()

	c.events.CaptionError(domain.ErrorCodePermission, detail)
	c.events.ListenStateChanged(domain.ListenStateError, domain.ListenReasonPermissionDenied)
}

func (c *CaptionController) scheduleRestart(ctx context.Context, generation int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.enabled || generation != c.generation {
		return
	}
	c.cancelRestartLocked()
	c.restart = time.AfterFunc(c.cfg.RestartDelay, func() {
		// Check the live enabled flag at fire time, not a captured value.
		c.mu.Lock()
		if c.closed || !c.enabled || generation != c.generation {
			c.mu.Unlock()
			return
		}
		c.restart = nil
		c.mu.Unlock()

		c.startSession(ctx, generation, false, domain.ListenReasonRestarted)
	})
}

func (c *CaptionController) cancelRestartLocked() {
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
}

func recognizedCode(code domain.RecognitionCode) bool {
	switch code {
	case domain.RecognitionCodeNoSpeech,
		domain.RecognitionCodeNetwork,
		domain.RecognitionCodeAborted,
		domain.RecognitionCodeAudioCapture:
		return true
	}
	return false
}
