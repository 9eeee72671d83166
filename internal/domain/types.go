package domain

// ListenState models the always-listening caption lifecycle.
type ListenState string

const (
	ListenStateIdle      ListenState = "idle"
	ListenStateStarting  ListenState = "starting"
	ListenStateListening ListenState = "listening"
	ListenStateError     ListenState = "error"
)

// ListenStateReason provides a structured reason for state transitions.
type ListenStateReason string

const (
	ListenReasonStartup          ListenStateReason = "startup"
	ListenReasonEnabled          ListenStateReason = "enabled"
	ListenReasonListening        ListenStateReason = "listening"
	ListenReasonRestarted        ListenStateReason = "restarted"
	ListenReasonDisabled         ListenStateReason = "disabled"
	ListenReasonPermissionDenied ListenStateReason = "permission_denied"
	ListenReasonUnsupported      ListenStateReason = "unsupported"
)

// ErrorCode identifies user-visible caption errors.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeFilter     ErrorCode = "filter"
	ErrorCodeCamera     ErrorCode = "camera"
)

// RecognitionCode classifies why a recognition session terminated.
//
// The permission class is terminal until the user re-enables listening;
// everything else, including codes this build has never seen, is treated
// as recoverable.
type RecognitionCode string

const (
	RecognitionCodeNotAllowed        RecognitionCode = "not-allowed"
	RecognitionCodeServiceNotAllowed RecognitionCode = "service-not-allowed"
	RecognitionCodeNoSpeech          RecognitionCode = "no-speech"
	RecognitionCodeNetwork           RecognitionCode = "network"
	RecognitionCodeAborted           RecognitionCode = "aborted"
	RecognitionCodeAudioCapture      RecognitionCode = "audio-capture"
)

// PermissionDenied reports whether the code belongs to the permission class.
func (c RecognitionCode) PermissionDenied() bool {
	return c == RecognitionCodeNotAllowed || c == RecognitionCodeServiceNotAllowed
}

// RecognitionError is the classified terminal error of a recognition session.
type RecognitionError struct {
	Code   RecognitionCode
	Detail string
}

func (e *RecognitionError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Detail
}

// TranscriptEvent is a snapshot of the most recent utterance's recognized
// text. Interim snapshots may be revised by later events.
type TranscriptEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// WordToken is the single currently-displayed word. The ID is regenerated
// for every token, even when the text repeats after a gap, so the frontend
// re-triggers its fly-in animation.
type WordToken struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Status summarizes the observable caption runtime state.
type Status struct {
	State            ListenState `json:"state"`
	Running          bool        `json:"running"`
	Supported        bool        `json:"supported"`
	PermissionDenied bool        `json:"permissionDenied"`
	PreviewEnabled   bool        `json:"previewEnabled"`
	CamError         string      `json:"camError,omitempty"`
	Message          string      `json:"message,omitempty"`
}
