package evolution

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestionvital/prospector/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.EvolutionConfig{
		BaseURL:             srv.URL,
		APIKey:              "secret",
		Instance:            "Main",
		TextTimeoutSeconds:  5,
		MediaTimeoutSeconds: 5,
	})
}

func TestSendText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SendText(context.Background(), "56971234567", "hello there")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/Main", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "56971234567", gotBody["number"])

	text := gotBody["textMessage"].(map[string]interface{})
	assert.Equal(t, "hello there", text["text"])
	opts := gotBody["options"].(map[string]interface{})
	assert.Equal(t, "composing", opts["presence"])
}

func TestSendTextFailureStatuses(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		})
		err := c.SendText(context.Background(), "56971234567", "x")
		assert.Error(t, err, "status %d should fail", code)
	}
}

func TestSendTextNoRetry(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	err := c.SendText(context.Background(), "56971234567", "x")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a failed send must not be retried")
}

func TestSendDocument(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	payload := []byte("%PDF-1.4 fake")
	err := c.SendDocument(context.Background(), "56971234567", payload, "audit.pdf", "Courtesy audit")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendMedia/Main", gotPath)
	media := gotBody["mediaMessage"].(map[string]interface{})
	assert.Equal(t, "document", media["mediatype"])
	assert.Equal(t, "audit.pdf", media["fileName"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), media["media"])
}

func TestSendTextUnreachableGateway(t *testing.T) {
	c := NewClient(config.EvolutionConfig{
		BaseURL:            "http://127.0.0.1:1",
		Instance:           "Main",
		TextTimeoutSeconds: 1,
	})
	err := c.SendText(context.Background(), "56971234567", "x")
	require.Error(t, err)
}
