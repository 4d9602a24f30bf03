package transcription

import (
	"context"
	"testing"

	"github.com/clipscribe/clipscribe/internal/ai"
	"github.com/clipscribe/clipscribe/internal/media"
	"github.com/clipscribe/clipscribe/pkg/logger"
)

type fakeProvider struct {
	response string
	err      error
	called   bool
	messages []ai.ChatMessage
	config   ai.ChatConfig
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	f.called = true
	f.messages = messages
	f.config = config
	return f.response, f.err
}

func newTestService(p ai.Provider) *Service {
	return NewService(p, Config{
		Model:       "standard-model",
		VisualModel: "visual-model",
	}, logger.NewNop())
}

func TestTranscribe(t *testing.T) {
	provider := &fakeProvider{response: "Hello there. How are you?"}
	svc := newTestService(provider)

	b64 := media.EncodeChunked([]byte("fake media bytes"))
	result, err := svc.Transcribe(context.Background(), TranscribeRequest{
		Audio:    b64,
		Language: "en",
		FileName: "clip.mp4",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Transcript != "Hello there. How are you?" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	if result.Language != "en" {
		t.Errorf("language = %q, want en", result.Language)
	}
	if len(result.Segments) != 2 {
		t.Errorf("got %d segments, want 2", len(result.Segments))
	}
	if provider.config.Model != "standard-model" {
		t.Errorf("model = %q", provider.config.Model)
	}
	if provider.config.MaxTokens != 8000 {
		t.Errorf("max tokens = %d, want default 8000", provider.config.MaxTokens)
	}
}

func TestTranscribeEmptyLanguageReportsAuto(t *testing.T) {
	svc := newTestService(&fakeProvider{response: "text"})
	result, err := svc.Transcribe(context.Background(), TranscribeRequest{
		Audio:    media.EncodeChunked([]byte("x")),
		FileName: "a.mp3",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Language != "auto" {
		t.Errorf("language = %q, want auto", result.Language)
	}
}

func TestTranscribeMissingPayload(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)
	_, err := svc.Transcribe(context.Background(), TranscribeRequest{FileName: "a.mp4"})
	if err == nil {
		t.Fatal("expected error for missing audio")
	}
	if provider.called {
		t.Error("provider was called despite missing payload")
	}
}

func TestTranscribeMalformedPayload(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)
	_, err := svc.Transcribe(context.Background(), TranscribeRequest{Audio: "!!not base64!!", FileName: "a.mp4"})
	if err == nil {
		t.Fatal("expected error for malformed base64")
	}
	if provider.called {
		t.Error("provider was called despite malformed payload")
	}
}

func TestTranscribePropagatesGatewayError(t *testing.T) {
	gerr := ai.ClassifyStatus(429, "slow down")
	svc := newTestService(&fakeProvider{err: gerr})
	_, err := svc.Transcribe(context.Background(), TranscribeRequest{
		Audio:    media.EncodeChunked([]byte("x")),
		FileName: "a.mp4",
	})
	got, ok := ai.AsGatewayError(err)
	if !ok || got.Kind != ai.KindRateLimited {
		t.Errorf("error = %v, want rate-limited gateway error", err)
	}
}

func TestVisualTranscribe(t *testing.T) {
	provider := &fakeProvider{response: `[{"timestamp": 0, "endTime": 4, "text": "Hi.", "visualDescription": "Desk."}]`}
	svc := newTestService(provider)

	result, err := svc.VisualTranscribe(context.Background(), VisualRequest{
		Video:    media.EncodeChunked([]byte("fake video")),
		FileName: "demo.webm",
	})
	if err != nil {
		t.Fatalf("VisualTranscribe: %v", err)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(result.Segments))
	}
	if result.Segments[0].Text != "Hi." {
		t.Errorf("segment text = %q", result.Segments[0].Text)
	}
	if provider.config.Model != "visual-model" {
		t.Errorf("model = %q, want visual-model", provider.config.Model)
	}

	// The media part must carry the webm MIME type inferred from the filename
	url := provider.messages[1].Parts[1].ImageURL
	if want := "data:video/webm;base64,"; len(url) < len(want) || url[:len(want)] != want {
		t.Errorf("media URL prefix = %q", url)
	}
}

func TestVisualTranscribeProseResponse(t *testing.T) {
	svc := newTestService(&fakeProvider{response: "I could not produce JSON for this video."})
	result, err := svc.VisualTranscribe(context.Background(), VisualRequest{
		Video:    media.EncodeChunked([]byte("v")),
		FileName: "demo.mp4",
	})
	if err != nil {
		t.Fatalf("VisualTranscribe: %v", err)
	}
	if len(result.Segments) != 1 || result.Segments[0].VisualDescription != "Video content analyzed" {
		t.Errorf("expected single fallback segment, got %+v", result.Segments)
	}
}

func TestVisualTranscribeMissingPayload(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(provider)
	_, err := svc.VisualTranscribe(context.Background(), VisualRequest{FileName: "demo.mp4"})
	if err == nil {
		t.Fatal("expected error for missing video")
	}
	if provider.called {
		t.Error("provider was called despite missing payload")
	}
}
