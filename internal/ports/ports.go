package ports

import (
	"context"
	"io"

	"wordlens/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// MicrophoneProbe checks that microphone access is currently available.
// A probe failure is treated as a permission denial.
type MicrophoneProbe interface {
	Probe(ctx context.Context) error
}

// RecognitionConfig describes engine-agnostic continuous recognition settings.
type RecognitionConfig struct {
	Language       string
	Continuous     bool
	InterimResults bool
	SampleRate     int
	Channels       int
	Encoding       string
}

// RecognitionSession is one live continuous-recognition session.
//
// Results is closed when the session terminates, after which Wait reports
// how: nil for a natural end (the engine stopped itself), or a
// *domain.RecognitionError carrying the classified failure code.
type RecognitionSession interface {
	Results() <-chan domain.TranscriptEvent
	Stop() error
	Wait() error
}

// Recognizer starts continuous speech recognition sessions.
type Recognizer interface {
	Start(ctx context.Context, cfg RecognitionConfig) (RecognitionSession, error)
}

// WordFilter transforms a single caption word using deterministic rules.
type WordFilter interface {
	Apply(word string) (string, error)
}

// EventSink emits caption state and word tokens to the render target.
type EventSink interface {
	ListenStateChanged(state domain.ListenState, reason domain.ListenStateReason)
	WordShown(token domain.WordToken)
	WordCleared(id string)
	CaptionError(code domain.ErrorCode, detail string)
}
