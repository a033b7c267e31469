package feeds

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/yungbote/ideaforge-backend/internal/platform/httpx"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const (
	DefaultHackerNewsURL  = "https://hnrss.org/newest"
	DefaultProductHuntURL = "https://www.producthunt.com/feed"
)

// Item is one feed entry, normalized across sources.
type Item struct {
	Source      string
	Title       string
	URL         string
	Description string
	Author      string
	PublishedAt time.Time
}

type Client interface {
	// SearchDiscussions queries Hacker News through hnrss.
	SearchDiscussions(ctx context.Context, query string, limit int) ([]Item, error)
	// LatestProducts returns the current Product Hunt feed.
	LatestProducts(ctx context.Context, limit int) ([]Item, error)
}

type Config struct {
	HackerNewsURL  string
	ProductHuntURL string
	Timeout        time.Duration
	Retry          httpx.Retry
}

type client struct {
	log            *logger.Logger
	http           *http.Client
	hnURL          string
	productHuntURL string
	retry          httpx.Retry
}

func NewClient(log *logger.Logger, cfg Config) Client {
	if cfg.HackerNewsURL == "" {
		cfg.HackerNewsURL = DefaultHackerNewsURL
	}
	if cfg.ProductHuntURL == "" {
		cfg.ProductHuntURL = DefaultProductHuntURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = httpx.DefaultRetry
	}
	return &client{
		log:            log.With("client", "feeds"),
		http:           &http.Client{Timeout: cfg.Timeout},
		hnURL:          cfg.HackerNewsURL,
		productHuntURL: cfg.ProductHuntURL,
		retry:          cfg.Retry,
	}
}

func (c *client) SearchDiscussions(ctx context.Context, query string, limit int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	u, err := url.Parse(c.hnURL)
	if err != nil {
		return nil, fmt.Errorf("feeds: hn url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return c.fetch(ctx, "Hacker News", u.String(), limit)
}

func (c *client) LatestProducts(ctx context.Context, limit int) ([]Item, error) {
	return c.fetch(ctx, "Product Hunt", c.productHuntURL, limit)
}

func (c *client) fetch(ctx context.Context, source, feedURL string, limit int) ([]Item, error) {
	body, err := httpx.Fetch(ctx, c.http, c.retry, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "ideaforge-research/1.0")
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("feeds: fetch %s: %w", source, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feeds: parse %s: %w", source, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		if limit > 0 && len(items) >= limit {
			break
		}
		it := Item{
			Source:      source,
			Title:       strings.TrimSpace(entry.Title),
			URL:         entry.Link,
			Description: stripTags(entry.Description),
		}
		if entry.PublishedParsed != nil {
			it.PublishedAt = entry.PublishedParsed.UTC()
		}
		if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			it.Author = entry.Authors[0].Name
		}
		items = append(items, it)
	}
	c.log.Debug("feed fetched", "source", source, "items", len(items))
	return items, nil
}

// stripTags drops markup from feed descriptions; both feeds embed HTML.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
