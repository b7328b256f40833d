package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"deep-research/internal/config"
	"deep-research/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<!DOCTYPE html>
<html><body>
<div class="serp__results">
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fquantum&amp;rut=abc123">Quantum Computing Advances</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fquantum">Researchers demonstrate new error correction milestones.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://quantum.example.org/roadmap">Industry Roadmap 2030</a>
    </h2>
    <a class="result__snippet" href="https://quantum.example.org/roadmap">Vendors publish timelines for fault tolerant machines.</a>
  </div>
  <div class="result results_links result--ad">
    <a class="result__a" href="https://ads.example.net">Sponsored result</a>
  </div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := parseResults(searchPage, 8)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Quantum Computing Advances", results[0].Title)
	assert.Equal(t, "https://example.com/quantum", results[0].URL)
	assert.Equal(t, "Researchers demonstrate new error correction milestones.", results[0].Snippet)

	assert.Equal(t, "Industry Roadmap 2030", results[1].Title)
	assert.Equal(t, "https://quantum.example.org/roadmap", results[1].URL)
}

func TestParseResultsCap(t *testing.T) {
	results, err := parseResults(searchPage, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestParseResultsEmptyPage(t *testing.T) {
	results, err := parseResults("<html><body><p>no hits here</p></body></html>", 8)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage&rut=xyz", "https://example.com/page"},
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2F", "https://example.com/"},
		{"https://direct.example.com/", "https://direct.example.com/"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapRedirect(tt.in), "unwrapRedirect(%q)", tt.in)
	}
}

func TestSearchSummarizesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/html/", r.URL.Path)
		assert.Equal(t, "quantum computing 2025", r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	var prompt string
	gen := &fakeGenerator{
		completeFn: func(ctx context.Context, system, user string) (string, error) {
			prompt = user
			return "quantum summary digest", nil
		},
	}
	svc := NewSearchService(gen, config.SearchConfig{BaseURL: srv.URL, MaxResults: 8, TimeoutSeconds: 5})

	summary, err := svc.Search(context.Background(), model.SearchItem{Query: "quantum computing 2025", Reason: "state of the art"})
	require.NoError(t, err)
	assert.Equal(t, "quantum summary digest", summary)

	assert.Contains(t, prompt, "Search term: quantum computing 2025")
	assert.Contains(t, prompt, "Reason for searching: state of the art")
	assert.Contains(t, prompt, "Quantum Computing Advances")
	assert.Contains(t, prompt, "https://example.com/quantum")
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	gen := &fakeGenerator{}
	svc := NewSearchService(gen, config.SearchConfig{BaseURL: srv.URL, MaxResults: 8, TimeoutSeconds: 5})

	_, err := svc.Search(context.Background(), model.SearchItem{Query: "nothing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results")
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	gen := &fakeGenerator{}
	svc := NewSearchService(gen, config.SearchConfig{BaseURL: srv.URL, MaxResults: 8, TimeoutSeconds: 5})

	_, err := svc.Search(context.Background(), model.SearchItem{Query: "quantum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
