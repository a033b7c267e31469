package app

import (
	"context"
	"fmt"

	"github.com/yungbote/ideaforge-backend/internal/clients/feeds"
	"github.com/yungbote/ideaforge-backend/internal/clients/gemini"
	"github.com/yungbote/ideaforge-backend/internal/clients/github"
	"github.com/yungbote/ideaforge-backend/internal/clients/websearch"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/ai_analysis"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/code_search"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/community_search"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/marketplace_search"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/web_search"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// Clients are the research providers. Analyzer is nil without a Gemini key.
type Clients struct {
	Analyzer gemini.Analyzer
	Feeds    feeds.Client
	Web      websearch.Searcher
	Repos    github.RepoSearcher
}

// NewClients builds the research providers from cfg.
func NewClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var analyzer gemini.Analyzer
	if cfg.GeminiAPIKey != "" {
		a, err := gemini.NewClient(ctx, log, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return Clients{}, fmt.Errorf("init gemini client: %w", err)
		}
		analyzer = a
	} else {
		log.Warn("GEMINI_API_KEY not set; ai-analysis worker disabled")
	}

	return Clients{
		Analyzer: analyzer,
		Feeds:    feeds.NewClient(log, feeds.Config{}),
		Web:      websearch.NewClient(log, websearch.Config{}),
		Repos:    github.NewClient(log, github.Config{Token: cfg.GitHubToken}),
	}, nil
}

// BuildRegistry registers one handler per worker type the clients can serve.
// API and worker processes build the same registry, so the coordinator
// never dispatches a type no worker can run.
func BuildRegistry(log *logger.Logger, c Clients) (*jobrt.Registry, error) {
	reg := jobrt.NewRegistry()
	handlers := []jobrt.Handler{
		web_search.New(log, c.Web),
		marketplace_search.New(log, c.Feeds),
		code_search.New(log, c.Repos),
		community_search.New(log, c.Feeds),
	}
	if c.Analyzer != nil {
		handlers = append([]jobrt.Handler{ai_analysis.New(log, c.Analyzer)}, handlers...)
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}
	return reg, nil
}
