package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/ideaforge-backend/internal/platform/httpx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const DefaultBaseURL = "https://api.github.com"

type Repository struct {
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	Language    string    `json:"language"`
	Topics      []string  `json:"topics"`
	PushedAt    time.Time `json:"pushed_at"`
}

type RepoSearcher interface {
	SearchRepositories(ctx context.Context, query string, limit int) ([]Repository, error)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   httpx.Retry
}

type client struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	token   string
	retry   httpx.Retry
}

func NewClient(log *logger.Logger, cfg Config) RepoSearcher {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = httpx.DefaultRetry
	}
	return &client{
		log:     log.With("client", "github"),
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		retry:   cfg.Retry,
	}
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []Repository `json:"items"`
}

func (c *client) SearchRepositories(ctx context.Context, query string, limit int) ([]Repository, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	params := url.Values{
		"q":        {query},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(limit)},
	}
	endpoint := c.baseURL + "/search/repositories?" + params.Encode()

	body, err := httpx.Fetch(ctx, c.http, c.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("github search: decode: %w", err)
	}
	c.log.Debug("github search done", "total", out.TotalCount, "returned", len(out.Items))
	return out.Items, nil
}
