// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func newTestClient(t *testing.T, cfg types.PubMedConfig, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := esearchURL
	esearchURL = ts.URL
	t.Cleanup(func() { esearchURL = old })

	return New(cfg)
}

func TestQuery(t *testing.T) {
	assert.Equal(t,
		"(aspirin[Title/Abstract]) AND (myocardial infarction[Title/Abstract]) AND (randomized controlled trial[Publication Type] OR meta-analysis[Publication Type] OR systematic review[Publication Type])",
		Query(" aspirin ", "myocardial infarction"))
}

func TestSearch_Success(t *testing.T) {
	c := newTestClient(t, types.PubMedConfig{Email: "dev@example.com"}, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "json", q.Get("retmode"))
		assert.Equal(t, "3", q.Get("retmax"))
		assert.Equal(t, "protocol-analyzer", q.Get("tool"))
		assert.Equal(t, "dev@example.com", q.Get("email"))
		assert.Empty(t, q.Get("api_key"))
		assert.Contains(t, q.Get("term"), "(metformin[Title/Abstract])")
		w.Write([]byte(`{"esearchresult":{"count":"120","idlist":["111","222","333","444"]}}`))
	})

	links, err := c.Search(context.Background(), "metformin", "type 2 diabetes")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://pubmed.ncbi.nlm.nih.gov/111/",
		"https://pubmed.ncbi.nlm.nih.gov/222/",
		"https://pubmed.ncbi.nlm.nih.gov/333/",
	}, links)
}

func TestSearch_NoHitsIsEmptyNotNil(t *testing.T) {
	c := newTestClient(t, types.PubMedConfig{}, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"esearchresult":{"count":"0","idlist":[]}}`))
	})
	links, err := c.Search(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}

func TestSearch_SendsAPIKey(t *testing.T) {
	c := newTestClient(t, types.PubMedConfig{APIKey: "ncbi-key"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ncbi-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"esearchresult":{"idlist":["1"]}}`))
	})
	links, err := c.Search(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestSearch_RetriesRateLimit(t *testing.T) {
	calls := 0
	c := newTestClient(t, types.PubMedConfig{APIKey: "k"}, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"esearchresult":{"idlist":["9"]}}`))
	})
	links, err := c.Search(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pubmed.ncbi.nlm.nih.gov/9/"}, links)
	assert.Equal(t, 2, calls)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name:    "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantMsg: "HTTP 502",
		},
		{
			name:    "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`<eSearchResult>`)) },
			wantMsg: "decoding",
		},
		{
			name: "search error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"esearchresult":{"ERROR":"Invalid query"}}`))
			},
			wantMsg: "Invalid query",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, types.PubMedConfig{}, tt.handler)
			_, err := c.Search(context.Background(), "x", "y")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNew_CapsMaxResults(t *testing.T) {
	assert.Equal(t, types.MaxPubMedLinks, New(types.PubMedConfig{MaxResults: 50}).MaxResults)
	assert.Equal(t, 2, New(types.PubMedConfig{MaxResults: 2}).MaxResults)
	assert.Equal(t, types.MaxPubMedLinks, New(types.PubMedConfig{}).MaxResults)
}

func TestRedact(t *testing.T) {
	base := errors.New(`Get "https://x/?api_key=secret": dial tcp: refused`)
	err := redact(base, "secret")
	assert.NotContains(t, err.Error(), "secret")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, base, redact(base, ""))
}
