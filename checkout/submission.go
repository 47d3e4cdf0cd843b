package checkout

import "sync"

// Status is the lifecycle position of one asynchronous user action.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// SubmissionState is a read-only snapshot handed to the presentation
// side. Message is empty unless the status is error (or success with an
// optional note).
type SubmissionState struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Submission tracks one submission lifecycle:
//
//	idle --Submit--> submitting --Succeed/Fail--> success/error
//
// Reset is legal from any state. Succeed and Fail only act while
// submitting, so a stale widget call that resolves after the flow already
// failed cannot overwrite the recorded outcome. Each flow owns its own
// instance; they never share state.
type Submission struct {
	mu      sync.Mutex
	status  Status
	message string
}

func NewSubmission() *Submission {
	return &Submission{status: StatusIdle}
}

// Reset forces the lifecycle back to idle and clears any message.
func (s *Submission) Reset() {
	s.mu.Lock()
	s.status = StatusIdle
	s.message = ""
	s.mu.Unlock()
}

// Submit starts a new attempt. It is a no-op while one is in flight.
func (s *Submission) Submit() {
	s.mu.Lock()
	if s.status != StatusSubmitting {
		s.status = StatusSubmitting
		s.message = ""
	}
	s.mu.Unlock()
}

// Succeed finishes the in-flight attempt. The message is optional.
func (s *Submission) Succeed(message string) {
	s.mu.Lock()
	if s.status == StatusSubmitting {
		s.status = StatusSuccess
		s.message = message
	}
	s.mu.Unlock()
}

// Fail finishes the in-flight attempt with a human-readable message.
func (s *Submission) Fail(message string) {
	s.mu.Lock()
	if s.status == StatusSubmitting {
		s.status = StatusError
		s.message = message
	}
	s.mu.Unlock()
}

// fail records an error regardless of the current state. Flows use it for
// rejections that happen before Submit (validation, readiness, identity).
func (s *Submission) fail(message string) {
	s.mu.Lock()
	s.status = StatusError
	s.message = message
	s.mu.Unlock()
}

func (s *Submission) State() SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubmissionState{Status: s.status, Message: s.message}
}
