package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"deep-research/internal/config"
	"deep-research/internal/logger"
	"deep-research/internal/model"

	"golang.org/x/sync/errgroup"
)

const plannerSystem = `You are a helpful research assistant. Given a research query, come up with a set of web searches to perform to best answer it. Output %d terms to search for. Respond with a JSON object of the form {"searches":[{"query":"...","reason":"..."}]} and nothing else.`

const writerSystem = `You are a senior researcher tasked with writing a cohesive report for a research query. You will be provided with the original query and a set of summarized search results gathered by a research assistant. First come up with an outline that describes the structure and flow of the report, then generate the full report. The output must be in markdown format, lengthy and detailed: aim for 5-10 pages of content, at least 1000 words. Output only the report markdown.`

// reportFlushBytes bounds how much report text can accumulate before the
// cumulative draft is re-emitted to the consumer.
const reportFlushBytes = 512

const emptyQueryChunk = "Please enter a research topic to get started."

// ResearchManager runs the staged research pipeline. It holds no per-run
// state, so concurrent runs only share the immutable collaborators.
type ResearchManager struct {
	gen      TextGenerator
	search   Searcher
	notifier *Notifier
	cfg      config.SearchConfig
}

func NewResearchManager(gen TextGenerator, search Searcher, notifier *Notifier, cfg config.SearchConfig) *ResearchManager {
	return &ResearchManager{gen: gen, search: search, notifier: notifier, cfg: cfg}
}

// Run starts the pipeline and returns its chunk stream. Every chunk fully
// replaces the previous one on the consumer's display; the last chunk before
// close is the final report, or a failure notice. The channel is unbuffered,
// so the pipeline suspends at every emission until the consumer has taken
// the chunk. The channel is always closed, also on cancellation and stage
// failure.
func (m *ResearchManager) Run(ctx context.Context, query string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		m.run(ctx, query, out)
	}()
	return out
}

func (m *ResearchManager) run(ctx context.Context, query string, out chan<- string) {
	emit := func(chunk string) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Info("research.rejected", "err", model.ErrEmptyQuery)
		emit(emptyQueryChunk)
		return
	}

	logger.Info("research.run", "query", query)

	if !emit("Planning searches...") {
		return
	}
	plan, err := m.plan(ctx, query)
	if err != nil {
		m.fail(ctx, emit, "plan", err)
		return
	}
	logger.Info("research.planned", "searches", len(plan.Searches))

	if !emit(fmt.Sprintf("Searching the web (%d queries)...", len(plan.Searches))) {
		return
	}
	summaries := m.runSearches(ctx, plan, emit)
	if ctx.Err() != nil {
		return
	}
	if len(summaries) == 0 {
		m.fail(ctx, emit, "search", fmt.Errorf("all %d searches failed", len(plan.Searches)))
		return
	}

	if !emit("Writing report...") {
		return
	}
	report, err := m.write(ctx, query, summaries, emit)
	if err != nil {
		m.fail(ctx, emit, "write", err)
		return
	}
	logger.Info("research.written", "query", query, "bytes", len(report))

	if m.notifier != nil {
		if !emit("Report written. Sending email...") {
			return
		}
		result, err := m.notifier.SendReport(ctx, report)
		if err != nil {
			// Surfaced in the stream, never retried.
			if !emit("Report written. " + result.Reason) {
				return
			}
		} else if !emit("Email sent. Research complete.") {
			return
		}
	}

	emit(report)
}

func (m *ResearchManager) fail(ctx context.Context, emit func(string) bool, stage string, err error) {
	if ctx.Err() != nil {
		logger.Info("research.canceled", "stage", stage)
		return
	}
	perr := &model.PipelineError{Stage: stage, Err: err}
	logger.Error("research.failed", "stage", stage, "err", err)
	emit("**Research failed.** " + perr.Error())
}

func (m *ResearchManager) plan(ctx context.Context, query string) (*model.SearchPlan, error) {
	reply, err := m.gen.Complete(ctx, fmt.Sprintf(plannerSystem, m.cfg.MaxSearches), "Query: "+query)
	if err != nil {
		return nil, fmt.Errorf("plan searches: %w", err)
	}

	var plan model.SearchPlan
	if err := json.Unmarshal([]byte(extractJSON(reply)), &plan); err != nil {
		return nil, fmt.Errorf("parse search plan: %w", err)
	}
	if len(plan.Searches) == 0 {
		return nil, fmt.Errorf("planner returned no searches")
	}
	if len(plan.Searches) > m.cfg.MaxSearches {
		plan.Searches = plan.Searches[:m.cfg.MaxSearches]
	}
	return &plan, nil
}

// runSearches fans the planned searches out with bounded parallelism and
// reports progress after each completion. Failed searches are logged and
// dropped; the caller decides whether zero survivors is fatal.
func (m *ResearchManager) runSearches(ctx context.Context, plan *model.SearchPlan, emit func(string) bool) []string {
	total := len(plan.Searches)
	completions := make(chan string, total)

	limit := m.cfg.Parallelism
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range plan.Searches {
		g.Go(func() error {
			summary, err := m.search.Search(gctx, item)
			if err != nil {
				logger.Warn("research.search.failed", "query", item.Query, "err", err)
				completions <- ""
				return nil
			}
			completions <- summary
			return nil
		})
	}
	go func() {
		g.Wait()
		close(completions)
	}()

	var summaries []string
	done := 0
	for s := range completions {
		done++
		if s != "" {
			summaries = append(summaries, s)
		}
		if !emit(fmt.Sprintf("Searching... %d/%d complete", done, total)) {
			return nil
		}
	}
	return summaries
}

// write streams the report out of the LLM, re-emitting the cumulative draft
// whenever the pending delta crosses a newline or the flush threshold. The
// consumer always renders a whole document, never a fragment.
func (m *ResearchManager) write(ctx context.Context, query string, summaries []string, emit func(string) bool) (string, error) {
	var report strings.Builder
	pending := 0
	flush := func(token string) error {
		report.WriteString(token)
		pending += len(token)
		if pending >= reportFlushBytes || strings.Contains(token, "\n") {
			if !emit(report.String()) {
				return ctx.Err()
			}
			pending = 0
		}
		return nil
	}

	user := fmt.Sprintf("Original query: %s\n\nSummarized search results:\n\n%s", query, strings.Join(summaries, "\n\n"))
	full, err := m.gen.Stream(ctx, writerSystem, user, flush)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if strings.TrimSpace(full) == "" {
		return "", fmt.Errorf("writer produced an empty report")
	}
	return full, nil
}
