package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateOK(text string) generateResponse {
	return generateResponse{
		Candidates: []candidate{
			{Content: content{Parts: []part{{Text: text}}}},
		},
	}
}

func TestGenerateReturnsFirstCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "free-1", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(generateOK("olá")))
	}))
	defer srv.Close()

	client := NewClient(managerWithKeys(t, []string{"free-1"}, ""), Config{BaseURL: srv.URL})

	text, err := client.Generate(context.Background(), "diga olá")
	require.NoError(t, err)
	assert.Equal(t, "olá", text)
}

func TestGenerateRotatesKeyOnQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "free-1" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(generateOK("resposta")))
	}))
	defer srv.Close()

	km := managerWithKeys(t, []string{"free-1", "free-2"}, "")
	client := NewClient(km, Config{BaseURL: srv.URL})

	text, err := client.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
	assert.Equal(t, 1, km.Available(), "burned key must stay deactivated")
}

func TestGenerateErrorsWhenAllKeysBurned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(managerWithKeys(t, []string{"free-1", "free-2"}, ""), Config{BaseURL: srv.URL})

	_, err := client.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNoKeysAvailable)
}

func TestGenerateSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
	}))
	defer srv.Close()

	client := NewClient(managerWithKeys(t, []string{"free-1"}, ""), Config{BaseURL: srv.URL})

	_, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal")
}
