package websearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yungbote/ideaforge-backend/internal/platform/httpx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const DefaultEndpoint = "https://html.duckduckgo.com/html/"

type Hit struct {
	Title   string
	URL     string
	Snippet string
	Domain  string
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

type Config struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
	Retry     httpx.Retry
}

type client struct {
	log      *logger.Logger
	http     *http.Client
	endpoint string
	ua       string
	retry    httpx.Retry
}

func NewClient(log *logger.Logger, cfg Config) Searcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; ideaforge-research/1.0)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = httpx.DefaultRetry
	}
	return &client{
		log:      log.With("client", "websearch"),
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		ua:       cfg.UserAgent,
		retry:    cfg.Retry,
	}
}

func (c *client) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	form := url.Values{"q": {query}}
	body, err := httpx.Fetch(ctx, c.http, c.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.ua)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("websearch: %w", err)
	}
	hits, err := ParseResults(bytes.NewReader(body), limit)
	if err != nil {
		return nil, err
	}
	c.log.Debug("web search done", "hits", len(hits))
	return hits, nil
}

// ParseResults reads a DuckDuckGo HTML results page. Ads are skipped.
func ParseResults(r io.Reader, limit int) ([]Hit, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("websearch: parse results: %w", err)
	}
	seen := map[string]bool{}
	var hits []Hit
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit > 0 && len(hits) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" || seen[target] {
			return true
		}
		seen[target] = true
		hits = append(hits, Hit{
			Title:   squash(a.Text()),
			URL:     target,
			Snippet: squash(s.Find(".result__snippet").First().Text()),
			Domain:  domainOf(target),
		})
		return true
	})
	return hits, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if dest := u.Query().Get("uddg"); dest != "" {
			return dest
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }
