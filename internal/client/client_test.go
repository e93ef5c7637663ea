package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemmy/internal/poller"
)

func TestTrackAndLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/track/abc", r.URL.Path)
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls > 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "refresh limit reached"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"found":    true,
			"progress": 0.5,
			"refresh":  map[string]any{"used": 1, "max": 240, "intervalSeconds": 15},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client())
	c.SetToken("tok")

	snap, err := c.Track(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, snap.Found)
	assert.Equal(t, 0.5, snap.Progress)
	assert.Equal(t, 240, snap.Refresh.Max)

	_, err = c.Track(context.Background(), "abc")
	assert.ErrorIs(t, err, poller.ErrLimitReached)
}

func TestErrorsCarryServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"admin only"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).CreateOrder(context.Background(), "Jane", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "admin only", apiErr.Message)
}

func TestExportFilename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="gemmy-export-2026-10-19.zip"`)
		w.Write([]byte("PK"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	name, err := New(srv.URL, nil).Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "gemmy-export-2026-10-19.zip", name)
	assert.Equal(t, "PK", buf.String())
}

func TestAnonymousStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accessToken":"anon","expiresIn":3600}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.Anonymous(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anon", c.token)
}
