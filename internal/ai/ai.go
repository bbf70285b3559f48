// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ai calls the Claude Messages API for the two generative steps of an
// analysis: inferring a protocol's disease context and resolving a drug name
// to its English INN with a short description and a suggested evidence class.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024

	// contextChars bounds the protocol text sent for context inference.
	contextChars = 15000
)

var (
	// ErrContentBlocked means the model declined to answer.
	ErrContentBlocked = errors.New("content blocked")

	// ErrMalformedResponse means the reply held no parseable JSON object.
	ErrMalformedResponse = errors.New("malformed AI response")

	// ErrEmptyResponse means the JSON parsed but the required field was blank.
	ErrEmptyResponse = errors.New("empty AI response")

	// ErrMissingAPIKey means no key was configured.
	ErrMissingAPIKey = errors.New("AI API key not configured")
)

// Client calls the Claude API. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// New creates a client from cfg.
func New(cfg types.AIConfig) *Client {
	c := &Client{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Client:    httputil.NewClient(cfg.HTTPConfig, nil),
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	return c
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Resolve asks the model for the English INN, a description and an evidence
// class for one drug. An empty English name is an error; the other fields may
// be blank.
func (c *Client) Resolve(ctx context.Context, req types.ResolveRequest) (types.Resolution, error) {
	prompt, err := render(drugPromptTmpl, req)
	if err != nil {
		return types.Resolution{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var res types.Resolution
	if err := c.completeJSON(ctx, prompt, &res); err != nil {
		return types.Resolution{}, err
	}
	res.EnglishName = strings.TrimSpace(res.EnglishName)
	res.Description = strings.TrimSpace(res.Description)
	res.SuggestedEvidence = strings.TrimSpace(res.SuggestedEvidence)
	if res.EnglishName == "" {
		return types.Resolution{}, fmt.Errorf("%w: no inn_english", ErrEmptyResponse)
	}
	return res, nil
}

// InferDiseaseContext asks the model which disease the protocol text is about.
// Only the first 15000 characters of the joined paragraphs are sent.
func (c *Client) InferDiseaseContext(ctx context.Context, paragraphs []string) (string, error) {
	text := truncate(strings.Join(paragraphs, "\n"), contextChars)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no document text", ErrEmptyResponse)
	}

	prompt, err := render(contextPromptTmpl, struct{ Text string }{Text: text})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	var out struct {
		DiseaseContext string `json:"disease_context"`
	}
	if err := c.completeJSON(ctx, prompt, &out); err != nil {
		return "", err
	}
	disease := strings.TrimSpace(out.DiseaseContext)
	if disease == "" {
		return "", fmt.Errorf("%w: no disease_context", ErrEmptyResponse)
	}
	return disease, nil
}

// completeJSON sends prompt and decodes the JSON object in the reply into v.
func (c *Client) completeJSON(ctx context.Context, prompt string, v any) error {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return err
	}
	raw, ok := extractJSON(text)
	if !ok {
		return fmt.Errorf("%w: no JSON in reply", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// complete sends one user message and returns the first text block.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("%w: decoding Claude response: %v", ErrMalformedResponse, err)
	}
	if cResp.StopReason == "refusal" {
		return "", ErrContentBlocked
	}

	for _, block := range cResp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in Claude API response", ErrEmptyResponse)
}

// extractJSON returns the outermost JSON object in text, or failing that the
// outermost array. Models often wrap JSON in prose or code fences.
func extractJSON(text string) (string, bool) {
	for _, pair := range [...][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			return text[start : end+1], true
		}
	}
	return "", false
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
