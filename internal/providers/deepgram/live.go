package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"wordlens/internal/domain"
	"wordlens/internal/ports"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
	ChunkSize   int
}

// Recognizer implements ports.Recognizer against the Deepgram live API.
// Each session owns its own microphone capture: the engine consumes raw
// audio and the caller only ever sees transcript events.
type Recognizer struct {
	cfg      Config
	capture  ports.AudioCapture
	audioCfg ports.AudioConfig
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, audioCfg ports.AudioConfig) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &Recognizer{cfg: cfg, capture: capture, audioCfg: audioCfg}
}

func (r *Recognizer) Start(ctx context.Context, cfg ports.RecognitionConfig) (ports.RecognitionSession, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, &domain.RecognitionError{
			Code:   domain.RecognitionCodeServiceNotAllowed,
			Detail: "DEEPGRAM_API_KEY is not configured",
		}
	}

	wsURL, err := buildListenURL(r.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, classifyDialError(err, resp)
	}

	mic, err := r.capture.Start(ctx, r.audioCfg)
	if err != nil {
		_ = conn.Close()
		return nil, &domain.RecognitionError{
			Code:   domain.RecognitionCodeAudioCapture,
			Detail: err.Error(),
		}
	}

	session := &liveSession{
		conn:       conn,
		mic:        mic,
		results:    make(chan domain.TranscriptEvent, 64),
		audio:      make(chan []byte, 32),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	session.wg.Add(3)
	go session.pumpMic(r.cfg.ChunkSize)
	go session.writeLoop()
	go session.readLoop()
	go func() {
		session.wg.Wait()
		close(session.results)
		close(session.done)
		_ = conn.Close()
		_ = mic.Stop()
	}()

	go func() {
		select {
		case <-ctx.Done():
			session.terminate(&domain.RecognitionError{
				Code:   domain.RecognitionCodeAborted,
				Detail: ctx.Err().Error(),
			})
		case <-session.done:
		}
	}()

	return session, nil
}

type liveSession struct {
	conn *websocket.Conn
	mic  ports.AudioSession

	results    chan domain.TranscriptEvent
	audio      chan []byte
	done       chan struct{}
	writerDone chan struct{}

	wg sync.WaitGroup

	mu       sync.Mutex
	err      error
	stopping bool
}

func (s *liveSession) Results() <-chan domain.TranscriptEvent {
	return s.results
}

// Stop ends the session gracefully; the subsequent Wait reports a natural
// end rather than an error. Stopping the microphone unwinds the pump, which
// in turn closes the send side.
func (s *liveSession) Stop() error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	_ = s.mic.Stop()
	_ = s.conn.Close()
	<-s.done
	return nil
}

func (s *liveSession) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// terminate records the first terminal error and tears the session down.
func (s *liveSession) terminate(recErr *domain.RecognitionError) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	if s.err == nil {
		s.err = recErr
	}
	s.mu.Unlock()

	_ = s.mic.Stop()
	_ = s.conn.Close()
}

// pumpMic is the only closer of the audio channel.
func (s *liveSession) pumpMic(chunkSize int) {
	defer s.wg.Done()
	defer close(s.audio)

	buf := make([]byte, chunkSize)
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.audio <- chunk:
			case <-s.writerDone:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.terminate(&domain.RecognitionError{
					Code:   domain.RecognitionCodeAudioCapture,
					Detail: err.Error(),
				})
			}
			return
		}
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()
	defer close(s.writerDone)

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.terminate(&domain.RecognitionError{
				Code:   domain.RecognitionCodeNetwork,
				Detail: fmt.Sprintf("failed to send audio: %v", err),
			})
			return
		}
	}

	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if recErr := classifyReadError(err); recErr != nil {
				s.terminate(recErr)
			} else {
				// A clean server close is the engine's natural end.
				s.mu.Lock()
				s.stopping = true
				s.mu.Unlock()
				_ = s.mic.Stop()
			}
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			s.terminate(classifyServerError(response.Message))
			return
		}

		transcript := response.transcript()
		if transcript == "" {
			continue
		}

		event := domain.TranscriptEvent{
			Text:    transcript,
			IsFinal: response.IsFinal || response.SpeechFinal,
		}
		select {
		case s.results <- event:
		case <-s.done:
		default:
		}
	}
}

func classifyDialError(err error, resp *http.Response) *domain.RecognitionError {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return &domain.RecognitionError{
			Code:   domain.RecognitionCodeServiceNotAllowed,
			Detail: fmt.Sprintf("deepgram rejected credentials: %s", resp.Status),
		}
	}
	return &domain.RecognitionError{
		Code:   domain.RecognitionCodeNetwork,
		Detail: fmt.Sprintf("failed to connect to deepgram: %v", err),
	}
}

// classifyReadError maps a websocket read failure to a recognition error.
// Clean closes return nil: the session ended naturally.
func classifyReadError(err error) *domain.RecognitionError {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return nil
		}
		// Deepgram closes with NET-0001 when it hears no audio.
		if strings.Contains(closeErr.Text, "NET-0001") {
			return &domain.RecognitionError{Code: domain.RecognitionCodeNoSpeech, Detail: closeErr.Text}
		}
		return &domain.RecognitionError{Code: domain.RecognitionCodeNetwork, Detail: closeErr.Text}
	}
	return &domain.RecognitionError{
		Code:   domain.RecognitionCodeNetwork,
		Detail: fmt.Sprintf("failed to read provider event: %v", err),
	}
}

func classifyServerError(message string) *domain.RecognitionError {
	detail := strings.TrimSpace(message)
	if detail == "" {
		detail = "deepgram returned an unknown error"
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "forbidden"):
		return &domain.RecognitionError{Code: domain.RecognitionCodeServiceNotAllowed, Detail: detail}
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "no audio"):
		return &domain.RecognitionError{Code: domain.RecognitionCodeNoSpeech, Detail: detail}
	default:
		return &domain.RecognitionError{Code: domain.RecognitionCodeNetwork, Detail: detail}
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

func buildListenURL(providerCfg Config, recCfg ports.RecognitionConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram API base URL: %w", err)
	}

	if recCfg.Encoding == "" {
		recCfg.Encoding = "linear16"
	}
	if recCfg.SampleRate <= 0 {
		recCfg.SampleRate = 16000
	}
	if recCfg.Channels <= 0 {
		recCfg.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", recCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", recCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", recCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", recCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if recCfg.Language != "" {
		query.Set("language", recCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
