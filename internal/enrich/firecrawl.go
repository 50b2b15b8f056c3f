package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultFirecrawlURL = "https://api.firecrawl.dev"

	searchTimeout = 15 * time.Second
	scrapeTimeout = 20 * time.Second

	scrapePrompt = "Extract: full name, job title, company, bio/about, location, follower count, following count, post count, email if visible. Return as JSON."
)

// Firecrawl talks to the Firecrawl v1 search and scrape endpoints.
type Firecrawl struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewFirecrawl(apiKey string) *Firecrawl {
	return &Firecrawl{
		apiKey:  apiKey,
		baseURL: DefaultFirecrawlURL,
		client:  &http.Client{},
	}
}

// WithBaseURL points the client at another host (tests, proxies).
func (f *Firecrawl) WithBaseURL(baseURL string) *Firecrawl {
	f.baseURL = strings.TrimRight(baseURL, "/")
	return f
}

func (f *Firecrawl) Name() string {
	return "firecrawl"
}

func (f *Firecrawl) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	payload := map[string]any{
		"query": query,
		"limit": limit,
		"scrapeOptions": map[string]any{
			"formats": []string{"markdown"},
		},
	}
	var out struct {
		Data    []SearchResult `json:"data"`
		Results []SearchResult `json:"results"`
	}
	if err := f.post(ctx, "/v1/search", payload, &out); err != nil {
		return nil, fmt.Errorf("firecrawl search: %w", err)
	}
	if out.Data != nil {
		return out.Data, nil
	}
	if out.Results != nil {
		return out.Results, nil
	}
	return []SearchResult{}, nil
}

func (f *Firecrawl) Scrape(ctx context.Context, url string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, scrapeTimeout)
	defer cancel()

	payload := map[string]any{
		"url":     url,
		"formats": []string{"extract"},
		"extract": map[string]any{"prompt": scrapePrompt},
	}
	var out struct {
		Extract map[string]any `json:"extract"`
		Data    struct {
			Extract map[string]any `json:"extract"`
		} `json:"data"`
	}
	if err := f.post(ctx, "/v1/scrape", payload, &out); err != nil {
		return nil, fmt.Errorf("firecrawl scrape: %w", err)
	}
	if len(out.Extract) > 0 {
		return out.Extract, nil
	}
	if len(out.Data.Extract) > 0 {
		return out.Data.Extract, nil
	}
	return nil, nil
}

func (f *Firecrawl) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
