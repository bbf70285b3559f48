// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed searches PubMed through the NCBI E-utilities esearch
// endpoint for high-evidence publications about a drug in a disease.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// esearchURL is the E-utilities search endpoint. Package-level var for test
// substitution.
var esearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"

// articleURL is the public article link prefix.
const articleURL = "https://pubmed.ncbi.nlm.nih.gov/"

// NCBI allows 3 requests per second without an API key and 10 with one.
const (
	rateAnonymous = 3
	rateWithKey   = 10
)

const defaultTool = "protocol-analyzer"

// publicationFilter restricts results to randomized trials and reviews.
const publicationFilter = "(randomized controlled trial[Publication Type] OR meta-analysis[Publication Type] OR systematic review[Publication Type])"

// Client searches PubMed. The underlying HTTP client carries the rate
// limiter, so one Client shared by all workers stays under NCBI's limit.
type Client struct {
	APIKey     string
	Email      string
	Tool       string
	MaxResults int
	Client     *http.Client
}

// New creates a client from cfg with a throttle matching the key status.
func New(cfg types.PubMedConfig) *Client {
	rps := float64(rateAnonymous)
	if cfg.APIKey != "" {
		rps = rateWithKey
	}
	c := &Client{
		APIKey:     cfg.APIKey,
		Email:      cfg.Email,
		Tool:       cfg.Tool,
		MaxResults: cfg.MaxResults,
		Client:     httputil.NewClient(cfg.HTTPConfig, httputil.PerSecond(rps)),
	}
	if c.Tool == "" {
		c.Tool = defaultTool
	}
	if c.MaxResults <= 0 || c.MaxResults > types.MaxPubMedLinks {
		c.MaxResults = types.MaxPubMedLinks
	}
	return c
}

type esearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
}

// Query builds the esearch term for drug in disease.
func Query(drug, disease string) string {
	return fmt.Sprintf("(%s[Title/Abstract]) AND (%s[Title/Abstract]) AND %s",
		strings.TrimSpace(drug), strings.TrimSpace(disease), publicationFilter)
}

// Search returns up to MaxResults article links in relevance order. No hits
// is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, drug, disease string) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {Query(drug, disease)},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(c.MaxResults)},
		"tool":    {c.Tool},
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, esearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("querying PubMed: %w", redact(err, c.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("PubMed returned HTTP %d", resp.StatusCode)
	}

	var sr esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding PubMed response: %w", err)
	}
	if sr.ESearchResult.Error != "" {
		return nil, fmt.Errorf("PubMed search error: %s", sr.ESearchResult.Error)
	}

	links := make([]string, 0, len(sr.ESearchResult.IDList))
	for _, pmid := range sr.ESearchResult.IDList {
		if len(links) == c.MaxResults {
			break
		}
		if pmid = strings.TrimSpace(pmid); pmid != "" {
			links = append(links, articleURL+pmid+"/")
		}
	}
	return links, nil
}

// redact strips the API key from transport errors, which quote the request URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
