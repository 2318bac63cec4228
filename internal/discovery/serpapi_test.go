package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestionvital/prospector/internal/config"
	"github.com/gestionvital/prospector/internal/lead"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.SerpAPIConfig{
		BaseURL:        srv.URL,
		APIKey:         "serp-key",
		Engine:         "google_maps",
		TimeoutSeconds: 5,
	})
}

func TestFindNew(t *testing.T) {
	var gotQuery map[string]string

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"engine":  q.Get("engine"),
			"q":       q.Get("q"),
			"api_key": q.Get("api_key"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"local_results": [
				{"place_id": "p1", "title": "Dental Sur", "phone": "+56 9 7123 4567", "address": "Pucon"},
				{"place_id": "p2", "title": "No Phone SpA", "phone": "No disponible", "address": "Pucon"},
				{"place_id": "p3", "title": "Empty Phone", "phone": "", "address": "Pucon"},
				{"place_id": "", "title": "No Place ID", "phone": "961112222", "address": "Pucon"}
			]
		}`))
	})

	leads, err := c.FindNew(context.Background(), "Dental Clinic", "Pucon, Chile")
	require.NoError(t, err)

	assert.Equal(t, "google_maps", gotQuery["engine"])
	assert.Equal(t, "Dental Clinic in Pucon, Chile", gotQuery["q"])
	assert.Equal(t, "serp-key", gotQuery["api_key"])

	require.Len(t, leads, 1)
	got := leads[0]
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "Dental Sur", got.Name)
	assert.Equal(t, "Pucon", got.Location)
	assert.Equal(t, "Dental Clinic", got.Category)
	assert.Equal(t, lead.StatusNew, got.Status)
}

func TestFindNewAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	})

	_, err := c.FindNew(context.Background(), "Dental Clinic", "Pucon, Chile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFindNewRetriesTransientFailures(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"local_results": []}`))
	})

	leads, err := c.FindNew(context.Background(), "Dental Clinic", "Pucon, Chile")
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.Equal(t, 2, calls, "idempotent search should retry")
}

func TestFindNewBadJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	_, err := c.FindNew(context.Background(), "X", "Y")
	require.Error(t, err)
}
