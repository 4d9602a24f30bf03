// Package session tracks the client-visible pipeline state machine and
// drives the simulated progress steps around the single real gateway call.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipscribe/clipscribe/internal/transcription"
)

// Top-level application states
const (
	StateUpload     = "upload"
	StateProcessing = "processing"
	StateResult     = "result"
)

// Processing steps. Standard mode runs uploading, extracting, transcribing,
// formatting; visual mode swaps formatting for analyzing (before the gateway
// call) and aligning (after).
const (
	StepUploading    = "uploading"
	StepExtracting   = "extracting"
	StepAnalyzing    = "analyzing"
	StepTranscribing = "transcribing"
	StepFormatting   = "formatting"
	StepAligning     = "aligning"
	StepComplete     = "complete"
)

// Transcription modes
const (
	ModeStandard = "standard"
	ModeVisual   = "visual"
)

// Session is one client's pipeline. A session is reusable: after a failure
// it returns to the upload state and can run a fresh request; each attempt
// gets fresh result objects.
type Session struct {
	ID        string
	Mode      string
	CreatedAt time.Time

	mu        sync.Mutex
	state     string
	step      string
	percent   int
	errMsg    string
	updatedAt time.Time
	busy      bool

	result       *transcription.Result
	visualResult *transcription.VisualResult
}

// Snapshot is a point-in-time copy of a session's observable state
type Snapshot struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Step      string    `json:"step,omitempty"`
	Percent   int       `json:"percent"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSession(mode string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		CreatedAt: now,
		state:     StateUpload,
		updatedAt: now,
	}
}

// Snapshot returns a copy of the session's observable state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		Mode:      s.Mode,
		State:     s.state,
		Step:      s.step,
		Percent:   s.percent,
		Error:     s.errMsg,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}

// Result returns the standard transcription result, if any
func (s *Session) Result() *transcription.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// VisualResult returns the visual transcription result, if any
func (s *Session) VisualResult() *transcription.VisualResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visualResult
}

// tryAcquire marks the session busy; a session runs one request at a time
func (s *Session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	// Fresh attempt: discard any previous results and error
	s.result = nil
	s.visualResult = nil
	s.errMsg = ""
	return true
}

// expired reports whether the session has been idle since before cutoff.
// Busy sessions never expire.
func (s *Session) expired(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && s.updatedAt.Before(cutoff)
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) setProcessing(step string, percent int) {
	s.mu.Lock()
	s.state = StateProcessing
	s.step = step
	s.percent = percent
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}

// fail records the error and returns the session to the upload state. No
// partial transcript survives a failure.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.state = StateUpload
	s.step = ""
	s.percent = 0
	s.errMsg = msg
	s.result = nil
	s.visualResult = nil
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) complete(result *transcription.Result, visual *transcription.VisualResult) {
	s.mu.Lock()
	s.state = StateResult
	s.step = StepComplete
	s.percent = 100
	s.errMsg = ""
	s.result = result
	s.visualResult = visual
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}
