// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate resolves protocol drug names to English through the
// Google Cloud Translation v2 REST API. It is the baseline name resolver;
// it fills only the English name.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// translateAPIURL is the Translation v2 endpoint. Package-level var for test
// substitution.
var translateAPIURL = "https://translation.googleapis.com/language/translate/v2"

var (
	// ErrEmptyTranslation means the service answered without usable text.
	ErrEmptyTranslation = errors.New("empty translation")

	// ErrMissingAPIKey means no key was configured.
	ErrMissingAPIKey = errors.New("translation API key not configured")
)

// Client translates drug names. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	APIKey string
	Source string
	Target string
	Client *http.Client
}

// New creates a client from cfg, defaulting to ru → en.
func New(cfg types.TranslateConfig) *Client {
	c := &Client{
		APIKey: cfg.APIKey,
		Source: cfg.Source,
		Target: cfg.Target,
		Client: httputil.NewClient(cfg.HTTPConfig, nil),
	}
	if c.Source == "" {
		c.Source = "ru"
	}
	if c.Target == "" {
		c.Target = "en"
	}
	return c
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Resolve translates req.ProtocolName. Usage text and disease context are
// not used by plain translation.
func (c *Client) Resolve(ctx context.Context, req types.ResolveRequest) (types.Resolution, error) {
	name, err := c.Translate(ctx, req.ProtocolName)
	if err != nil {
		return types.Resolution{}, err
	}
	return types.Resolution{EnglishName: name}, nil
}

// Translate returns the translation of text.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if c.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}

	form := url.Values{
		"q":      {text},
		"source": {c.Source},
		"target": {c.Target},
		"format": {"text"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, translateAPIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// The key goes in a header so transport errors, which quote the URL, never carry it.
	req.Header.Set("X-Goog-Api-Key", c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling translation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return "", fmt.Errorf("translation API returned %d: %s", resp.StatusCode, e.Error.Message)
		}
		return "", fmt.Errorf("translation API returned %d", resp.StatusCode)
	}

	var tr translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding translation response: %w", err)
	}
	if len(tr.Data.Translations) == 0 {
		return "", ErrEmptyTranslation
	}
	out := strings.TrimSpace(html.UnescapeString(tr.Data.Translations[0].TranslatedText))
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
