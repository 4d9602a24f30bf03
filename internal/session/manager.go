package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clipscribe/clipscribe/internal/transcription"
	"github.com/clipscribe/clipscribe/internal/websocket"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

// Broadcaster pushes session updates to connected clients. The websocket
// hub satisfies this; tests pass a recorder or nil.
type Broadcaster interface {
	Broadcast(message *websocket.Message)
}

// Config holds the simulated step timings. The scripted steps are cosmetic
// feedback for the UI; only the transcribing step is gated on real work.
type Config struct {
	Uploading  time.Duration
	Extracting time.Duration
	Analyzing  time.Duration
	Formatting time.Duration
	Aligning   time.Duration
	Ticks      int

	// Retention bounds how long an idle session stays resolvable by ID.
	// Sessions past the window are evicted when new sessions are created,
	// keeping the map bounded on a long-running server.
	Retention time.Duration
}

// Manager owns all sessions and runs their pipelines
type Manager struct {
	config      Config
	broadcaster Broadcaster
	logger      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a new session manager
func NewManager(config Config, broadcaster Broadcaster, logger *logger.Logger) *Manager {
	if config.Ticks <= 0 {
		config.Ticks = 20
	}
	if config.Retention <= 0 {
		config.Retention = time.Hour
	}
	return &Manager{
		config:      config,
		broadcaster: broadcaster,
		logger:      logger.Named("session"),
		sessions:    make(map[string]*Session),
	}
}

// Create registers a new session in the upload state. Sessions idle past the
// retention window are evicted on the way in.
func (m *Manager) Create(mode string) *Session {
	sess := newSession(mode)
	m.mu.Lock()
	m.pruneLocked()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	m.logger.Info("Session created",
		logger.String("session_id", sess.ID),
		logger.String("mode", mode))
	return sess
}

// pruneLocked drops sessions idle since before the retention cutoff. A
// session with a request in flight is never evicted. Caller holds m.mu.
func (m *Manager) pruneLocked() {
	cutoff := time.Now().UTC().Add(-m.config.Retention)
	for id, sess := range m.sessions {
		if sess.expired(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// Get returns a session by ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// RunStandard drives a standard transcription pipeline through the session.
// Once started the pipeline runs to completion or failure; there is no
// mid-pipeline cancellation beyond server shutdown via ctx.
func (m *Manager) RunStandard(ctx context.Context, sess *Session, work func(context.Context) (*transcription.Result, error)) (*transcription.Result, error) {
	if !sess.tryAcquire() {
		return nil, fmt.Errorf("session %s already has a request in flight", sess.ID)
	}
	defer sess.release()

	m.runStep(ctx, sess, StepUploading, m.config.Uploading)
	m.runStep(ctx, sess, StepExtracting, m.config.Extracting)

	result, err := awaitStep(m, ctx, sess, work)
	if err != nil {
		m.failSession(sess, err)
		return nil, err
	}

	m.runStep(ctx, sess, StepFormatting, m.config.Formatting)

	sess.complete(result, nil)
	m.broadcastState(sess)
	return result, nil
}

// RunVisual drives a visual transcription pipeline through the session
func (m *Manager) RunVisual(ctx context.Context, sess *Session, work func(context.Context) (*transcription.VisualResult, error)) (*transcription.VisualResult, error) {
	if !sess.tryAcquire() {
		return nil, fmt.Errorf("session %s already has a request in flight", sess.ID)
	}
	defer sess.release()

	m.runStep(ctx, sess, StepUploading, m.config.Uploading)
	m.runStep(ctx, sess, StepExtracting, m.config.Extracting)
	m.runStep(ctx, sess, StepAnalyzing, m.config.Analyzing)

	result, err := awaitStep(m, ctx, sess, work)
	if err != nil {
		m.failSession(sess, err)
		return nil, err
	}

	m.runStep(ctx, sess, StepAligning, m.config.Aligning)

	sess.complete(nil, result)
	m.broadcastState(sess)
	return result, nil
}

// runStep plays out one simulated step: Ticks evenly spaced progress updates
// over the configured duration. The step does no real work.
func (m *Manager) runStep(ctx context.Context, sess *Session, step string, duration time.Duration) {
	if duration <= 0 {
		sess.setProcessing(step, 100)
		m.broadcastProgress(sess)
		return
	}

	interval := duration / time.Duration(m.config.Ticks)
	sess.setProcessing(step, 0)
	m.broadcastProgress(sess)

	for tick := 1; tick <= m.config.Ticks; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		sess.setProcessing(step, tick*100/m.config.Ticks)
		m.broadcastProgress(sess)
	}
}

// awaitStep runs the gateway call under the transcribing step. A scripted
// ticker crawls the percentage toward 95 on its own timeline while the call
// is in flight; the two are independent, so the bar may stall before the
// response lands or jump when it does.
func awaitStep[T any](m *Manager, ctx context.Context, sess *Session, work func(context.Context) (T, error)) (T, error) {
	sess.setProcessing(StepTranscribing, 0)
	m.broadcastProgress(sess)

	done := make(chan struct{})
	go func() {
		interval := 500 * time.Millisecond
		percent := 0
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			if percent < 95 {
				percent += 5
				sess.setProcessing(StepTranscribing, percent)
				m.broadcastProgress(sess)
			}
		}
	}()

	result, err := work(ctx)
	close(done)
	if err == nil {
		sess.setProcessing(StepTranscribing, 100)
		m.broadcastProgress(sess)
	}
	return result, err
}

func (m *Manager) failSession(sess *Session, err error) {
	sess.fail(err.Error())
	m.logger.Warn("Pipeline failed",
		logger.String("session_id", sess.ID),
		logger.Error(err))
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeSessionError,
			Data: map[string]any{
				"session_id": sess.ID,
				"error":      err.Error(),
				"state":      StateUpload,
			},
		})
	}
}

func (m *Manager) broadcastProgress(sess *Session) {
	if m.broadcaster == nil {
		return
	}
	snap := sess.Snapshot()
	m.broadcaster.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeSessionProgress,
		Data: map[string]any{
			"session_id": snap.ID,
			"state":      snap.State,
			"step":       snap.Step,
			"percent":    snap.Percent,
		},
	})
}

func (m *Manager) broadcastState(sess *Session) {
	if m.broadcaster == nil {
		return
	}
	snap := sess.Snapshot()
	m.broadcaster.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeSessionState,
		Data: map[string]any{
			"session_id": snap.ID,
			"state":      snap.State,
			"step":       snap.Step,
			"percent":    snap.Percent,
		},
	})
}
