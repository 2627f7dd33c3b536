// Package websearch implements the web_search tool backed by Tavily's
// search API, registered only when TAVILY_API_KEY is configured.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
	maxCacheSize      = 1000
	cacheTTL          = 5 * time.Minute
)

// Config holds the Tavily tool's credentials and defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
}

// searchParams is the decoded form of the tool's arguments.
type searchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// SearchResult is one hit returned by Tavily.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResponse is the tool's JSON output.
type SearchResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []SearchResult `json:"results"`
}

type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Tool implements agent.Tool against the Tavily search API.
type Tool struct {
	config     Config
	httpClient *http.Client

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
}

// New creates a Tavily-backed web_search tool. apiKey must be non-empty;
// callers are expected to skip registration otherwise (see 4.D).
func New(config Config) *Tool {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.MaxResults <= 0 {
		config.MaxResults = defaultMaxResults
	}
	return &Tool{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]*cacheEntry),
	}
}

func (t *Tool) Name() string { return "web_search" }

func (t *Tool) Description() string {
	return "Search the public web for current information. Use this when the answer depends on " +
		"facts that may have changed since training or that are not in the conversation. Do not " +
		"use it for arithmetic, code execution, or anything answerable from context alone."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "The search query."},
    "max_results": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Maximum results to return (default 5)."}
  },
  "required": ["query"],
  "additionalProperties": false
}`)
}

// Execute runs one Tavily search, serving from the in-memory cache when the
// same query was asked recently.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var args searchParams
	if err := json.Unmarshal(params, &args); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if args.Query == "" {
		return &agent.ToolResult{Content: "query is required", IsError: true}, nil
	}
	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = t.config.MaxResults
	}
	if maxResults > 20 {
		maxResults = 20
	}

	cacheKey := fmt.Sprintf("%s:%d", args.Query, maxResults)
	if cached := t.fromCache(cacheKey); cached != nil {
		return formatResponse(cached)
	}

	response, err := t.search(ctx, args.Query, maxResults)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("search failed: %v", err), IsError: true}, nil
	}

	t.putInCache(cacheKey, response)
	return formatResponse(response)
}

func formatResponse(response *SearchResponse) (*agent.ToolResult, error) {
	body, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("failed to format response: %v", err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(body)}, nil
}

// search issues one request against Tavily's /search endpoint.
func (t *Tool) search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":        t.config.APIKey,
		"query":          query,
		"max_results":    maxResults,
		"include_answer": true,
		"search_depth":   "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var tavilyResp struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &tavilyResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}

	return &SearchResponse{Query: query, Answer: tavilyResp.Answer, Results: results}, nil
}

func (t *Tool) fromCache(key string) *SearchResponse {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	entry, ok := t.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.response
}

func (t *Tool) putInCache(key string, response *SearchResponse) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	now := time.Now()
	for k, v := range t.cache {
		if now.After(v.expiresAt) {
			delete(t.cache, k)
		}
	}
	for len(t.cache) >= maxCacheSize {
		var oldestKey string
		var oldestTime time.Time
		for k, v := range t.cache {
			if oldestKey == "" || v.expiresAt.Before(oldestTime) {
				oldestKey, oldestTime = k, v.expiresAt
			}
		}
		if oldestKey == "" {
			break
		}
		delete(t.cache, oldestKey)
	}

	t.cache[key] = &cacheEntry{response: response, expiresAt: now.Add(cacheTTL)}
}
