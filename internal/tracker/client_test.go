package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/models"
)

func TestHTTPClientCreateIssue(t *testing.T) {
	var gotAuth string
	var gotPayload models.IssuePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/issues", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ISS-42"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret-token")
	id, err := c.CreateIssue(context.Background(), models.IssuePayload{
		Title:    "Follow up with ACME",
		TeamID:   "T1",
		Priority: models.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "ISS-42", id)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Follow up with ACME", gotPayload.Title)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.CreateIssue(context.Background(), models.IssuePayload{Title: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.True(t, Retryable(err))
}

func TestHTTPClientValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"team_id required"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.CreateIssue(context.Background(), models.IssuePayload{Title: "x"})
	require.Error(t, err)
	assert.False(t, Retryable(err))
}

func TestHTTPClientMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.CreateIssue(context.Background(), models.IssuePayload{Title: "x"})
	assert.ErrorContains(t, err, "missing issue id")
}
