package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const DefaultModel = "gemini-2.5-flash"

// Analysis is the structured assessment of one idea.
type Analysis struct {
	NoveltyScore      float64  `json:"noveltyScore"`
	Category          string   `json:"category"`
	KeyConcepts       []string `json:"keyConcepts"`
	ExistingSolutions []string `json:"existingSolutions"`
	MarketLandscape   string   `json:"marketLandscape"`
	Challenges        []string `json:"challenges"`
	Opportunities     []string `json:"opportunities"`
	SearchQueries     []string `json:"searchQueries"`
}

type Analyzer interface {
	AnalyzeIdea(ctx context.Context, title, content string) (*Analysis, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type client struct {
	log    *logger.Logger
	genai  *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

var ErrEmptyResponse = errors.New("gemini: empty response")

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (Analyzer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(base, "/") + "/"}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &client{
		log:   log.With("client", "gemini"),
		genai: gc,
		model: model,
		config: &genai.GenerateContentConfig{
			ResponseMIMEType:   "application/json",
			ResponseJsonSchema: analysisSchema,
		},
	}, nil
}

func (c *client) AnalyzeIdea(ctx context.Context, title, content string) (*Analysis, error) {
	prompt := buildPrompt(title, content)
	res, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if res == nil {
		return nil, ErrEmptyResponse
	}
	out, err := ParseAnalysis(res.Text())
	if err != nil {
		c.log.Warn("gemini returned unparseable analysis", "model", c.model, "error", err)
		return nil, err
	}
	return out, nil
}

/*
ParseAnalysis extracts the first JSON object from raw model output. Models
sometimes wrap JSON in prose or code fences even when asked not to.
*/
func ParseAnalysis(raw string) (*Analysis, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("gemini: no JSON object in response")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("gemini: decode analysis: %w", err)
	}
	if a.NoveltyScore < 0 {
		a.NoveltyScore = 0
	}
	if a.NoveltyScore > 10 {
		a.NoveltyScore = 10
	}
	return &a, nil
}
