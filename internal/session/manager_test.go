package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clipscribe/clipscribe/internal/transcription"
	"github.com/clipscribe/clipscribe/internal/websocket"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (r *recordingBroadcaster) Broadcast(message *websocket.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) byType(t string) []*websocket.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*websocket.Message
	for _, m := range r.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Fast timings so pipeline tests complete quickly
func testConfig() Config {
	return Config{
		Uploading:  4 * time.Millisecond,
		Extracting: 4 * time.Millisecond,
		Analyzing:  4 * time.Millisecond,
		Formatting: 4 * time.Millisecond,
		Aligning:   4 * time.Millisecond,
		Ticks:      2,
	}
}

func TestCreateAndGet(t *testing.T) {
	m := NewManager(testConfig(), nil, logger.NewNop())
	sess := m.Create(ModeStandard)

	if sess.ID == "" {
		t.Fatal("session has no ID")
	}
	snap := sess.Snapshot()
	if snap.State != StateUpload {
		t.Errorf("new session state = %q, want upload", snap.State)
	}

	got, ok := m.Get(sess.ID)
	if !ok || got != sess {
		t.Error("Get did not return the created session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get returned a session for an unknown ID")
	}
}

func TestRunStandardSuccess(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(testConfig(), b, logger.NewNop())
	sess := m.Create(ModeStandard)

	want := &transcription.Result{Transcript: "Hello.", Language: "en"}
	result, err := m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("RunStandard: %v", err)
	}
	if result != want {
		t.Error("result not passed through")
	}

	snap := sess.Snapshot()
	if snap.State != StateResult || snap.Step != StepComplete || snap.Percent != 100 {
		t.Errorf("final snapshot = %+v", snap)
	}
	if sess.Result() != want {
		t.Error("session did not retain the result")
	}

	if len(b.byType(websocket.MessageTypeSessionProgress)) == 0 {
		t.Error("no progress messages broadcast")
	}
	states := b.byType(websocket.MessageTypeSessionState)
	if len(states) == 0 {
		t.Fatal("no state message broadcast")
	}
	if states[len(states)-1].Data["state"] != StateResult {
		t.Errorf("final state broadcast = %v", states[len(states)-1].Data)
	}
}

func TestRunStandardFailureReturnsToUpload(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(testConfig(), b, logger.NewNop())
	sess := m.Create(ModeStandard)

	_, err := m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return nil, fmt.Errorf("gateway said no")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	snap := sess.Snapshot()
	if snap.State != StateUpload {
		t.Errorf("state after failure = %q, want upload", snap.State)
	}
	if snap.Percent != 0 || snap.Step != "" {
		t.Errorf("progress not reset after failure: %+v", snap)
	}
	if snap.Error != "gateway said no" {
		t.Errorf("error = %q", snap.Error)
	}
	if sess.Result() != nil {
		t.Error("partial result retained after failure")
	}

	errs := b.byType(websocket.MessageTypeSessionError)
	if len(errs) != 1 {
		t.Fatalf("got %d error broadcasts, want 1", len(errs))
	}
	if errs[0].Data["session_id"] != sess.ID {
		t.Error("error broadcast missing session id")
	}
}

func TestRunStandardRecoverableAfterFailure(t *testing.T) {
	m := NewManager(testConfig(), nil, logger.NewNop())
	sess := m.Create(ModeStandard)

	_, _ = m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return nil, fmt.Errorf("boom")
	})

	want := &transcription.Result{Transcript: "Second try."}
	result, err := m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result != want {
		t.Error("second run result not passed through")
	}
	if snap := sess.Snapshot(); snap.Error != "" {
		t.Errorf("stale error survived retry: %q", snap.Error)
	}
}

func TestRunVisualStepOrder(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(testConfig(), b, logger.NewNop())
	sess := m.Create(ModeVisual)

	want := &transcription.VisualResult{Segments: []transcription.VisualSegment{{ID: "seg-0-1"}}}
	result, err := m.RunVisual(context.Background(), sess, func(ctx context.Context) (*transcription.VisualResult, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("RunVisual: %v", err)
	}
	if result != want {
		t.Error("result not passed through")
	}
	if sess.VisualResult() != want {
		t.Error("session did not retain the visual result")
	}

	// Steps must appear in pipeline order, with analyzing before and
	// aligning after the transcribing step
	var order []string
	for _, msg := range b.byType(websocket.MessageTypeSessionProgress) {
		step, _ := msg.Data["step"].(string)
		if len(order) == 0 || order[len(order)-1] != step {
			order = append(order, step)
		}
	}
	want2 := []string{StepUploading, StepExtracting, StepAnalyzing, StepTranscribing, StepAligning}
	if len(order) != len(want2) {
		t.Fatalf("step order = %v, want %v", order, want2)
	}
	for i := range want2 {
		if order[i] != want2[i] {
			t.Fatalf("step order = %v, want %v", order, want2)
		}
	}
}

func TestIdleSessionsEvictedAfterRetention(t *testing.T) {
	cfg := testConfig()
	cfg.Retention = time.Nanosecond
	m := NewManager(cfg, nil, logger.NewNop())

	old := m.Create(ModeStandard)
	held := m.Create(ModeStandard)
	if !held.tryAcquire() {
		t.Fatal("could not mark session busy")
	}
	defer held.release()

	time.Sleep(time.Millisecond)
	fresh := m.Create(ModeStandard)

	if _, ok := m.Get(old.ID); ok {
		t.Error("idle session survived past the retention window")
	}
	if _, ok := m.Get(held.ID); !ok {
		t.Error("session with a request in flight was evicted")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("newly created session is not resolvable")
	}
}

func TestOneRequestInFlightPerSession(t *testing.T) {
	m := NewManager(testConfig(), nil, logger.NewNop())
	sess := m.Create(ModeStandard)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
			close(started)
			<-release
			return &transcription.Result{}, nil
		})
	}()
	<-started

	_, err := m.RunStandard(context.Background(), sess, func(ctx context.Context) (*transcription.Result, error) {
		return &transcription.Result{}, nil
	})
	close(release)
	if err == nil {
		t.Error("concurrent run on the same session was accepted")
	}
}
