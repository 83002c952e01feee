package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
)

func newTestClient(url string) *goopenai.Client {
	cfg := goopenai.DefaultConfig("test-key")
	cfg.BaseURL = url + "/v1"
	return goopenai.NewClientWithConfig(cfg)
}

func TestSynthesize_RoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("fake-mp3-bytes"))
	}))
	defer ts.Close()

	svc := NewService(newTestClient(ts.URL), nil)
	result, err := svc.Synthesize(context.Background(), Payload{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(result.Audio) != "fake-mp3-bytes" {
		t.Fatalf("unexpected audio: %q", result.Audio)
	}
}

func TestTranscribe_RoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "hello world"}`))
	}))
	defer ts.Close()

	svc := NewService(newTestClient(ts.URL), nil)
	result, err := svc.Transcribe(context.Background(), Payload{Audio: []byte("fake-audio")})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	svc := NewService(newTestClient("http://127.0.0.1:0"), nil)
	if _, err := svc.Synthesize(context.Background(), Payload{}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	svc := NewService(newTestClient("http://127.0.0.1:0"), nil)
	if _, err := svc.Transcribe(context.Background(), Payload{}); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}
