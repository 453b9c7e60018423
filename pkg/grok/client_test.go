package grok

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
)

func newTestClient(srv *httptest.Server) *HTTPClient {
	return NewClient(config.GrokConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "grok-beta",
		Timeout: 5 * time.Second,
	})
}

func chatReply(content string) string {
	resp := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestSummarize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(req.Messages))
		}
		if !strings.Contains(req.Messages[1].Content, "talking about the trip") {
			t.Error("user message should carry the transcript")
		}

		w.Write([]byte(chatReply("A short video about a trip.")))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	summary, err := c.Summarize(context.Background(), SummaryRequest{
		Transcript:      "we are talking about the trip we took last summer",
		MeaningfulWords: 40,
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "A short video about a trip." {
		t.Errorf("summary = %q", summary)
	}
}

func TestSummarize_InsufficientContentSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(InsufficientContentSentinel)))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Summarize(context.Background(), SummaryRequest{Transcript: "uh"})
	if !errors.Is(err, domain.ErrInsufficientContent) {
		t.Errorf("err = %v, want ErrInsufficientContent", err)
	}
}

func TestSummarize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.Summarize(context.Background(), SummaryRequest{Transcript: "x"}); err == nil {
		t.Error("server error should surface as an error")
	}
}

func TestBuildSummaryPrompt_ShortTranscriptHint(t *testing.T) {
	short := buildSummaryPrompt(SummaryRequest{Transcript: "a b c", MeaningfulWords: 8})
	if !strings.Contains(short, "8 meaningful words") {
		t.Error("short transcripts should carry the conservative hint")
	}

	long := buildSummaryPrompt(SummaryRequest{Transcript: "...", MeaningfulWords: 200})
	if strings.Contains(long, "meaningful words") {
		t.Error("long transcripts should not carry the hint")
	}
}
