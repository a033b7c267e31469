package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/ideaforge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/ideaforge-backend/internal/http/middleware"
	"github.com/yungbote/ideaforge-backend/internal/observability"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	IdeaHandler     *httpH.IdeaHandler
	ResearchHandler *httpH.ResearchHandler
	StreamHandler   *httpH.StreamHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestIDs())
	r.Use(httpMW.AccessLog(cfg.Log, cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Ideas
		if cfg.IdeaHandler != nil {
			api.GET("/ideas", cfg.IdeaHandler.ListIdeas)
			api.POST("/ideas", cfg.IdeaHandler.CreateIdea)
			api.GET("/ideas/:id", cfg.IdeaHandler.GetIdea)
			api.PATCH("/ideas/:id", cfg.IdeaHandler.UpdateIdea)
			api.DELETE("/ideas/:id", cfg.IdeaHandler.DeleteIdea)
			api.POST("/results/:id/dismiss", cfg.IdeaHandler.DismissResult)
		}

		// Research
		if cfg.ResearchHandler != nil {
			api.POST("/ideas/:id/research", cfg.ResearchHandler.StartResearch)
			api.GET("/ideas/:id/research", cfg.ResearchHandler.GetProgress)
		}

		// Realtime (SSE)
		if cfg.StreamHandler != nil {
			api.GET("/ideas/:id/stream", cfg.StreamHandler.StreamIdea)
		}
	}

	return r
}
