package question

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CatalogClient fetches the remote question catalog: a JSON document grouped
// by subject node key, each node holding question records keyed by id.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient builds a client for the remote catalog endpoint.
func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &CatalogClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// CatalogQuestion is the raw shape of one remote catalog record.
type CatalogQuestion struct {
	QuestionID string   `json:"questionId,omitempty"`
	ID         string   `json:"id,omitempty"`
	Text       string   `json:"text"`
	Answer     string   `json:"answer"`
	Options    []string `json:"options,omitempty"`
	Grade      string   `json:"grade,omitempty"`
}

// Fetch downloads the whole catalog. Callers treat any failure as an empty
// contribution; the pool resolver always has fallback content.
func (c *CatalogClient) Fetch(ctx context.Context) (map[string]map[string]CatalogQuestion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/questions.json", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog non-200: %d", resp.StatusCode)
	}

	var payload map[string]map[string]CatalogQuestion
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
