package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/api/presenter"
	"github.com/betrace-hq/betrace-sub002/internal/core"
)

func TestURLBuilder(t *testing.T) {
	c := New("http://localhost:8080/")

	t.Run("path params are substituted and escaped", func(t *testing.T) {
		got := c.url().
			setPath("/v1/signals/{id}/status").
			setPathParam("id", "abc/123").
			build()
		assert.Equal(t, "http://localhost:8080/v1/signals/abc%2F123/status", got)
	})

	t.Run("query params are encoded", func(t *testing.T) {
		got := c.url().
			setPath("/v1/signals").
			addQueryParam("severity", "high").
			addQueryParam("limit", 25).
			build()
		assert.Equal(t, "http://localhost:8080/v1/signals?limit=25&severity=high", got)
	})

	t.Run("no query leaves the url bare", func(t *testing.T) {
		got := c.url().setPath("/healthz").build()
		assert.Equal(t, "http://localhost:8080/healthz", got)
	})
}

func TestClientInjectsHeaders(t *testing.T) {
	var gotAuth, gotTenant string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("X-BeTrace-Tenant")
		w.Header().Set("X-Correlation-ID", "corr-1")
		_ = json.NewEncoder(w).Encode(api.ListSignalsResponse{})
	}))
	defer ts.Close()

	c := New(ts.URL, WithAuthToken("token-123"), WithTenant("acme"))
	_, err := c.ListSignals(context.Background(), ListSignalsOpts{})
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "acme", gotTenant)
}

func TestClientParsesErrorResponses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(presenter.ErrorResponse{
			Error:         "fetching signal: signal not found",
			CorrelationID: "corr-9",
		})
	}))
	defer ts.Close()

	c := New(ts.URL, WithTenant("acme"))
	_, err := c.GetSignal(context.Background(), uuid.New())
	require.Error(t, err)

	var apiErr APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "corr-9", apiErr.CorrelationID)
	assert.Contains(t, apiErr.Message, "signal not found")
}

func TestClientInvalidSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(presenter.ErrorResponse{Error: "invalid session token"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.GetSignal(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestClientSetSignalStatus(t *testing.T) {
	id := uuid.New()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/signals/"+id.String()+"/status", r.URL.Path)

		var payload api.SignalStatusPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, core.SignalResolved, payload.Status)

		_ = json.NewEncoder(w).Encode(core.Signal{ID: id, Status: payload.Status})
	}))
	defer ts.Close()

	c := New(ts.URL, WithTenant("acme"))
	sig, err := c.SetSignalStatus(context.Background(), id, core.SignalResolved)
	require.NoError(t, err)
	assert.Equal(t, core.SignalResolved, sig.Status)
}
