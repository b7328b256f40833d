package main

import (
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"

	"deep-research/internal/config"
	"deep-research/internal/handler"
	"deep-research/internal/logger"
	"deep-research/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed dist/*
var staticFS embed.FS

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)

	if cfg.OpenAI.APIKey == "" {
		slog.Warn("openai api key not set, research runs will fail")
	}

	llm := service.NewLLMService(cfg.OpenAI)
	search := service.NewSearchService(llm, cfg.Search)

	var notifier *service.Notifier
	if cfg.Email.Enabled() {
		notifier = service.NewNotifier(cfg.Email)
		slog.Info("report emails enabled", "to", cfg.Email.To)
	} else {
		slog.Warn("report emails disabled, email credentials not configured")
	}

	manager := service.NewResearchManager(llm, search, notifier, cfg.Search)
	researchH := handler.NewResearchHandler(manager)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.POST("/api/research/stream", researchH.Stream)
	r.GET("/api/health", researchH.Health)

	distFS, _ := fs.Sub(staticFS, "dist")
	r.NoRoute(gin.WrapH(http.FileServer(http.FS(distFS))))

	slog.Info("server starting", "addr", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		slog.Error("server failed", "err", err)
	}
}
