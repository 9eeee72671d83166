package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wordlens/internal/domain"
	"wordlens/internal/ports"
)

func TestControllerEnableProbesAndListens(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session}}
	probe := &fakeProbe{}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, probe, nil, events, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)

	waitUntil(t, time.Second, func() bool {
		return controller.Status().Running
	})
	if probe.count() != 1 {
		t.Fatalf("expected one permission probe, got %d", probe.count())
	}
	if recognizer.count() != 1 {
		t.Fatalf("expected one session start, got %d", recognizer.count())
	}

	session.emit(domain.TranscriptEvent{Text: "hello world"})
	waitUntil(t, time.Second, func() bool {
		words := events.snapshotWords()
		return len(words) == 1 && words[0].Text == "world"
	})
}

func TestControllerNaturalEndSchedulesExactlyOneRestart(t *testing.T) {
	t.Parallel()

	first := newFakeRecognitionSession()
	second := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{first, second}}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, events, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return recognizer.count() == 1 })

	first.finish(nil)

	waitUntil(t, time.Second, func() bool { return recognizer.count() == 2 })
	time.Sleep(80 * time.Millisecond)
	if recognizer.count() != 2 {
		t.Fatalf("expected exactly one restart, got %d starts", recognizer.count())
	}
}

func TestControllerDisableSuppressesPendingRestart(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session, newFakeRecognitionSession()}}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, events, Config{
		RestartDelay: 50 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	session.finish(nil)
	waitUntil(t, time.Second, func() bool { return !controller.Status().Running })
	controller.SetEnabled(context.Background(), false)

	time.Sleep(150 * time.Millisecond)
	if recognizer.count() != 1 {
		t.Fatalf("expected restart to be suppressed, got %d starts", recognizer.count())
	}
}

func TestControllerDisableStopsLiveSession(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session}}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, events, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	controller.SetEnabled(context.Background(), false)
	waitUntil(t, time.Second, func() bool { return session.stops() > 0 })

	status := controller.Status()
	if status.Running || status.State != domain.ListenStateIdle {
		t.Fatalf("unexpected status after disable: %+v", status)
	}
}

func TestControllerPermissionDenialIsAbsorbing(t *testing.T) {
	t.Parallel()

	first := newFakeRecognitionSession()
	second := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{first, second}}
	probe := &fakeProbe{}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, probe, nil, events, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	first.finish(&domain.RecognitionError{Code: domain.RecognitionCodeNotAllowed, Detail: "mic blocked"})

	waitUntil(t, time.Second, func() bool { return controller.Status().PermissionDenied })
	time.Sleep(80 * time.Millisecond)
	if recognizer.count() != 1 {
		t.Fatalf("expected no restart after permission denial, got %d starts", recognizer.count())
	}
	errorsGot := events.snapshotErrors()
	if len(errorsGot) == 0 || errorsGot[0].code != domain.ErrorCodePermission {
		t.Fatalf("expected permission error event, got %+v", errorsGot)
	}

	// Re-enabling clears the denial and probes the microphone again.
	controller.SetEnabled(context.Background(), false)
	controller.SetEnabled(context.Background(), true)

	waitUntil(t, time.Second, func() bool { return controller.Status().Running })
	if probe.count() != 2 {
		t.Fatalf("expected a fresh probe after re-enable, got %d", probe.count())
	}
	if controller.Status().PermissionDenied {
		t.Fatalf("expected denial cleared after re-enable")
	}
}

func TestControllerProbeFailureIsPermissionDenied(t *testing.T) {
	t.Parallel()

	recognizer := &fakeRecognizer{}
	probe := &fakeProbe{err: errors.New("device busy")}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, probe, nil, events, Config{WordHold: time.Minute})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)

	waitUntil(t, time.Second, func() bool { return controller.Status().PermissionDenied })
	if recognizer.count() != 0 {
		t.Fatalf("expected no session start after probe failure, got %d", recognizer.count())
	}
}

func TestControllerRecoverableErrorRestarts(t *testing.T) {
	t.Parallel()

	first := newFakeRecognitionSession()
	second := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{first, second}}
	events := &fakeEventSink{}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, events, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	first.finish(&domain.RecognitionError{Code: domain.RecognitionCodeNetwork, Detail: "socket reset"})

	waitUntil(t, time.Second, func() bool { return recognizer.count() == 2 })
	if len(events.snapshotErrors()) != 0 {
		t.Fatalf("recoverable failures must not surface to the user: %+v", events.snapshotErrors())
	}
}

func TestControllerUnknownCodeIsRecoverable(t *testing.T) {
	t.Parallel()

	first := newFakeRecognitionSession()
	second := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{first, second}}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, &fakeEventSink{}, Config{
		RestartDelay: 20 * time.Millisecond,
		WordHold:     time.Minute,
	})
	defer controller.Close()

	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	first.finish(&domain.RecognitionError{Code: "something-new", Detail: "future engine code"})

	waitUntil(t, time.Second, func() bool { return recognizer.count() == 2 })
}

func TestControllerCloseIsTerminal(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session}}

	controller := NewCaptionController(recognizer, &fakeProbe{}, nil, &fakeEventSink{}, Config{WordHold: time.Minute})
	controller.SetEnabled(context.Background(), true)
	waitUntil(t, time.Second, func() bool { return controller.Status().Running })

	controller.Close()
	waitUntil(t, time.Second, func() bool { return session.stops() > 0 })

	controller.SetEnabled(context.Background(), true)
	time.Sleep(50 * time.Millisecond)
	if recognizer.count() != 1 {
		t.Fatalf("expected no starts after close, got %d", recognizer.count())
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []*fakeRecognitionSession
	err      error
	calls    int
}

func (f *fakeRecognizer) Start(_ context.Context, _ ports.RecognitionConfig) (ports.RecognitionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeRecognizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecognitionSession struct {
	results chan domain.TranscriptEvent
	done    chan struct{}

	mu        sync.Mutex
	waitErr   error
	finished  bool
	stopCalls int
}

func newFakeRecognitionSession() *fakeRecognitionSession {
	return &fakeRecognitionSession{
		results: make(chan domain.TranscriptEvent, 16),
		done:    make(chan struct{}),
	}
}

func (f *fakeRecognitionSession) Results() <-chan domain.TranscriptEvent { return f.results }

func (f *fakeRecognitionSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.finish(nil)
	return nil
}

func (f *fakeRecognitionSession) Wait() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeRecognitionSession) emit(event domain.TranscriptEvent) {
	f.results <- event
}

func (f *fakeRecognitionSession) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.finished = true
	f.waitErr = err
	close(f.results)
	close(f.done)
}

func (f *fakeRecognitionSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProbe struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProbe) Probe(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProbe) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEventSink struct {
	mu sync.Mutex

	states  []stateEvent
	words   []domain.WordToken
	cleared []string
	errors  []errEvent
}

type stateEvent struct {
	state  domain.ListenState
	reason domain.ListenStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) ListenStateChanged(state domain.ListenState, reason domain.ListenStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) WordShown(token domain.WordToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.words = append(f.words, token)
}

func (f *fakeEventSink) WordCleared(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
}

func (f *fakeEventSink) CaptionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotWords() []domain.WordToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.WordToken, len(f.words))
	copy(out, f.words)
	return out
}

func (f *fakeEventSink) snapshotCleared() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cleared))
	copy(out, f.cleared)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}
