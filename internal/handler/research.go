package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"deep-research/internal/logger"
	"deep-research/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Runner is the research pipeline as the transport layer sees it: one query
// in, a finite stream of display chunks out.
type Runner interface {
	Run(ctx context.Context, query string) <-chan string
}

type ResearchHandler struct {
	runner Runner
}

func NewResearchHandler(runner Runner) *ResearchHandler {
	return &ResearchHandler{runner: runner}
}

type sseWriter struct {
	w http.Flusher
	f gin.ResponseWriter
}

func (s *sseWriter) event(name string, data interface{}) {
	j, _ := json.Marshal(data)
	fmt.Fprintf(s.f, "event: %s\ndata: %s\n\n", name, j)
	s.w.Flush()
}

func (s *sseWriter) chunk(markdown string) {
	s.event("chunk", model.StreamChunk{Markdown: markdown})
}

func (s *sseWriter) done() {
	s.event("done", map[string]string{})
}

// Stream runs one research query and relays its chunks over SSE. Each chunk
// event carries the full markdown to display; the client replaces, never
// appends.
func (h *ResearchHandler) Stream(c *gin.Context) {
	var req model.ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	runID := uuid.NewString()
	log := logger.With("run_id", runID)
	log.Info("research.stream", "query", req.Query)

	sse := &sseWriter{w: c.Writer, f: c.Writer}
	sse.event("meta", model.StreamMeta{RunID: runID})

	chunks := 0
	for chunk := range h.runner.Run(ctx, req.Query) {
		sse.chunk(chunk)
		chunks++
	}
	sse.done()
	log.Info("research.stream.done", "chunks", chunks)
}

func (h *ResearchHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
