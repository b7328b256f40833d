package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deep-research/internal/config"
	"deep-research/internal/logger"
	"deep-research/internal/model"

	"golang.org/x/net/html"
)

const searchSummarySystem = `You are a research assistant. Given a search term and a list of web results, produce a concise summary of the results. The summary must be 2-3 paragraphs and less than 300 words. Capture the main points. Write succinctly, no need for complete sentences or good grammar. This will be consumed by someone synthesizing a report, so it is vital you capture the essence and ignore any fluff. Do not include any additional commentary other than the summary itself.`

// Searcher executes one planned search and returns a digest of what was found.
type Searcher interface {
	Search(ctx context.Context, item model.SearchItem) (string, error)
}

// SearchService queries the DuckDuckGo HTML endpoint and has the LLM
// summarize the hits.
type SearchService struct {
	client *http.Client
	gen    TextGenerator
	cfg    config.SearchConfig
}

func NewSearchService(gen TextGenerator, cfg config.SearchConfig) *SearchService {
	return &SearchService{
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		gen:    gen,
		cfg:    cfg,
	}
}

func (s *SearchService) Search(ctx context.Context, item model.SearchItem) (string, error) {
	results, err := s.fetch(ctx, item.Query)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", item.Query, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("search %q: no results", item.Query)
	}
	logger.Debug("search results fetched", "query", item.Query, "count", len(results))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search term: %s\nReason for searching: %s\n\nResults:\n", item.Query, item.Reason)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	summary, err := s.gen.Complete(ctx, searchSummarySystem, sb.String())
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", item.Query, err)
	}
	return summary, nil
}

func (s *SearchService) fetch(ctx context.Context, query string) ([]model.SearchResult, error) {
	searchURL := fmt.Sprintf("%s/html/?q=%s", strings.TrimSuffix(s.cfg.BaseURL, "/"), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return parseResults(string(body), s.cfg.MaxResults)
}

// parseResults walks the DuckDuckGo HTML page; each hit lives in a
// div with class "result results_links".
func parseResults(page string, maxResults int) ([]model.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []model.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) model.SearchResult {
	var r model.SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = attr(n, "href")
				r.Title = text(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	r.URL = unwrapRedirect(r.URL)
	return r
}

// unwrapRedirect resolves DuckDuckGo's //duckduckgo.com/l/?uddg= indirection
// back to the target URL.
func unwrapRedirect(u string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(u, prefix) {
		return u
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(u, prefix))
	if err != nil {
		return u
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
