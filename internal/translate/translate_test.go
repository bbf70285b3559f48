// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := translateAPIURL
	translateAPIURL = ts.URL
	t.Cleanup(func() { translateAPIURL = old })

	return New(types.TranslateConfig{APIKey: "test-key"})
}

func TestResolve_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Метформин", r.PostForm.Get("q"))
		assert.Equal(t, "ru", r.PostForm.Get("source"))
		assert.Equal(t, "en", r.PostForm.Get("target"))
		assert.Equal(t, "text", r.PostForm.Get("format"))
		w.Write([]byte(`{"data":{"translations":[{"translatedText":" Metformin "}]}}`))
	})

	res, err := c.Resolve(context.Background(), types.ResolveRequest{ProtocolName: "Метформин", UsageText: "500 мг"})
	require.NoError(t, err)
	assert.Equal(t, types.Resolution{EnglishName: "Metformin"}, res)
}

func TestTranslate_UnescapesEntities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"amoxicillin &amp; clavulanic acid"}]}}`))
	})
	got, err := c.Translate(context.Background(), "амоксициллин + клавулановая кислота")
	require.NoError(t, err)
	assert.Equal(t, "amoxicillin & clavulanic acid", got)
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantIs  error
		wantMsg string
	}{
		{
			name: "no translations",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"data":{"translations":[]}}`))
			},
			wantIs: ErrEmptyTranslation,
		},
		{
			name: "blank translation",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"data":{"translations":[{"translatedText":"  "}]}}`))
			},
			wantIs: ErrEmptyTranslation,
		},
		{
			name: "api error message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
			},
			wantMsg: "returned 403: API key not valid",
		},
		{
			name: "server error without body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantMsg: "returned 500",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"data":`))
			},
			wantMsg: "decoding translation response",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Translate(context.Background(), "Метформин")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestTranslate_NoCallWithoutKeyOrText(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := c.Translate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyTranslation)

	c.APIKey = ""
	_, err = c.Translate(context.Background(), "Метформин")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestTranslate_DeadlineExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Translate(ctx, "Метформин")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNew_Defaults(t *testing.T) {
	c := New(types.TranslateConfig{Source: "kk"})
	assert.Equal(t, "kk", c.Source)
	assert.Equal(t, "en", c.Target)
	assert.NotNil(t, c.Client)
}
