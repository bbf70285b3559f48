// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package regulatory checks whether a drug appears in a regulatory body's
// public search results. Each body is described by a search URL and a marker
// identifying result elements in the returned HTML, so FDA and EMA share one
// implementation.
package regulatory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// maxPageBytes bounds how much of a results page is parsed.
const maxPageBytes = 4 << 20

// ErrUnexpectedStatus means the search page answered with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// DefaultFDA searches Drugs@FDA; product overview links mark a hit.
var DefaultFDA = types.RegistryBody{
	Name:      "fda",
	SearchURL: "https://www.accessdata.fda.gov/scripts/cder/daf/index.cfm?event=BasicSearch.process&SearchTerm=%s",
	Marker:    types.RegistryMarker{Tag: "a", Attr: "href", Value: "event=overview.process"},
}

// DefaultEMA searches the EMA site; EPAR links mark a hit.
var DefaultEMA = types.RegistryBody{
	Name:      "ema",
	SearchURL: "https://www.ema.europa.eu/en/search?search_api_fulltext=%s",
	Marker:    types.RegistryMarker{Tag: "a", Attr: "href", Value: "/en/medicines/human/EPAR/"},
}

// Client checks one regulatory body. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	Body   types.RegistryBody
	Client *http.Client
}

// New creates a client for body, filling blank fields from fallback.
func New(body, fallback types.RegistryBody, cfg types.HTTPConfig) *Client {
	if body.Name == "" {
		body.Name = fallback.Name
	}
	if body.SearchURL == "" {
		body.SearchURL = fallback.SearchURL
	}
	if body.Marker.Tag == "" {
		body.Marker = fallback.Marker
	}
	return &Client{Body: body, Client: httputil.NewClient(cfg, nil)}
}

// Name returns the body name used in logs and metrics.
func (c *Client) Name() string { return c.Body.Name }

// Check searches for drug. An empty name is StatusNotApplicable with no
// error. Any transport, status or parse failure is StatusScrapingError with
// the cause returned alongside.
func (c *Client) Check(ctx context.Context, drug string) (types.RegistryStatus, error) {
	drug = strings.TrimSpace(drug)
	if drug == "" {
		return types.StatusNotApplicable, nil
	}

	target := fmt.Sprintf(c.Body.SearchURL, url.QueryEscape(drug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.StatusScrapingError, fmt.Errorf("creating %s request: %w", c.Body.Name, err)
	}
	req.Header.Set("Accept", "text/html")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return types.StatusScrapingError, fmt.Errorf("fetching %s search page: %w", c.Body.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return types.StatusScrapingError, fmt.Errorf("%s search page: %w %d", c.Body.Name, ErrUnexpectedStatus, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return types.StatusScrapingError, fmt.Errorf("parsing %s search page: %w", c.Body.Name, err)
	}
	if HasMarker(doc, c.Body.Marker) {
		return types.StatusFound, nil
	}
	return types.StatusNotFound, nil
}

// HasMarker reports whether the tree under n holds an element named m.Tag
// whose m.Attr attribute contains m.Value. An empty Attr matches any element
// with the tag.
func HasMarker(n *html.Node, m types.RegistryMarker) bool {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, m.Tag) {
		if m.Attr == "" {
			return true
		}
		for _, a := range n.Attr {
			if strings.EqualFold(a.Key, m.Attr) && strings.Contains(a.Val, m.Value) {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if HasMarker(c, m) {
			return true
		}
	}
	return false
}
