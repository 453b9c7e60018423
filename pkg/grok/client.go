// Package grok interfaces with the Grok AI chat API for transcript
// summarization.
package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
)

// InsufficientContentSentinel is the exact reply the model is instructed to
// produce when a transcript carries too little material to summarize.
const InsufficientContentSentinel = "INSUFFICIENT_CONTENT"

// Client summarizes transcripts.
type Client interface {
	// Summarize turns a transcript into short formatted prose. It returns
	// domain.ErrInsufficientContent when the model declines, which callers
	// treat as a terminal skip, not an error.
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// SummaryRequest carries the transcript and the meaningful-word count, used
// to tune how conservative the model should be about fabricating content
// for very short transcripts.
type SummaryRequest struct {
	Transcript      string
	MeaningfulWords int
}

// HTTPClient implements Client using HTTP requests to the Grok API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a new Grok API client.
func NewClient(cfg config.GrokConfig) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Summarize turns a transcript into short formatted prose.
func (c *HTTPClient) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: systemPrompt,
			},
			{
				Role:    "user",
				Content: buildSummaryPrompt(req),
			},
		},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	summary := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if summary == InsufficientContentSentinel {
		return "", domain.ErrInsufficientContent
	}

	return summary, nil
}

const systemPrompt = "You summarize spoken-word transcripts of short personal videos. " +
	"Write one or two plain paragraphs describing what is said. " +
	"Do not invent details that are not in the transcript. " +
	"If the transcript does not contain enough substantive speech to summarize, " +
	"reply with exactly " + InsufficientContentSentinel + " and nothing else."

// buildSummaryPrompt renders the user message. Transcripts with few
// meaningful words get an extra caution so the model prefers the sentinel
// over fabrication.
func buildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder

	if req.MeaningfulWords > 0 && req.MeaningfulWords < 30 {
		fmt.Fprintf(&b, "This transcript contains only about %d meaningful words. "+
			"Be conservative: if there is not enough material, reply %s.\n\n",
			req.MeaningfulWords, InsufficientContentSentinel)
	}

	b.WriteString("Transcript:\n")
	b.WriteString(req.Transcript)

	return b.String()
}
