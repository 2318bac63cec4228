// Package discovery finds new prospects through the SerpApi local-search
// API. It is only consulted when a cycle has no eligible follow-ups; the
// runner dedupes its results before appending them to the store.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gestionvital/prospector/internal/config"
	"github.com/gestionvital/prospector/internal/lead"
	"github.com/gestionvital/prospector/internal/pkg/httpretry"
)

// Client queries SerpApi. Searches are idempotent, so they go through the
// retrying HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	engine     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a discovery client from config.
func NewClient(cfg config.SerpAPIConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		engine:  cfg.Engine,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// searchResponse is the slice of the SerpApi answer we care about.
type searchResponse struct {
	LocalResults []localResult `json:"local_results"`
}

type localResult struct {
	PlaceID string `json:"place_id"`
	Title   string `json:"title"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// FindNew searches for businesses of the given category in the region and
// maps usable results to lead records. Results without a reachable phone
// are dropped here; id/phone dedupe is the caller's job.
func (c *Client) FindNew(ctx context.Context, category, region string) ([]lead.Lead, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", fmt.Sprintf("%s in %s", category, region))
	params.Set("api_key", c.apiKey)

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	leads := make([]lead.Lead, 0, len(parsed.LocalResults))
	for _, r := range parsed.LocalResults {
		if r.PlaceID == "" || !usablePhone(r.Phone) {
			continue
		}
		leads = append(leads, lead.Lead{
			ID:       r.PlaceID,
			Name:     r.Title,
			Location: r.Address,
			Category: category,
			Status:   lead.StatusNew,
			Phone:    r.Phone,
		})
	}
	return leads, nil
}

// usablePhone filters the provider's "no phone" sentinels.
func usablePhone(phone string) bool {
	p := strings.TrimSpace(phone)
	return p != "" && !strings.EqualFold(p, "No disponible") && !strings.EqualFold(p, "Not available")
}
