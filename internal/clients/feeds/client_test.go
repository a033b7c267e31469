package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

const hnFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Hacker News: Newest</title>
<item>
  <title>Show HN: Routing for bike couriers</title>
  <link>https://news.ycombinator.com/item?id=1</link>
  <description><![CDATA[<p>We built <b>routing</b> for couriers.</p>]]></description>
  <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
</item>
<item>
  <title>Ask HN: Courier software?</title>
  <link>https://news.ycombinator.com/item?id=2</link>
  <description>What do couriers use?</description>
</item>
<item>
  <title>Unrelated</title>
  <link>https://news.ycombinator.com/item?id=3</link>
</item>
</channel>
</rss>`

const phFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Product Hunt</title>
<entry>
  <title>CourierKit</title>
  <link rel="alternate" href="https://www.producthunt.com/posts/courierkit"/>
  <content type="html">Dispatch tools for couriers</content>
  <author><name>maker</name></author>
  <id>1</id>
  <updated>2025-06-02T10:00:00Z</updated>
</entry>
</feed>`

func TestSearchDiscussionsPassesQueryAndLimits(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(hnFeed))
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{HackerNewsURL: srv.URL + "/newest"})
	items, err := c.SearchDiscussions(context.Background(), "bike couriers", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "bike couriers", gotQuery)
	assert.Equal(t, "Hacker News", items[0].Source)
	assert.Equal(t, "We built routing for couriers.", items[0].Description)
	assert.False(t, items[0].PublishedAt.IsZero())
}

func TestSearchDiscussionsEmptyQuery(t *testing.T) {
	c := NewClient(logger.Nop(), Config{HackerNewsURL: "http://127.0.0.1:1"})
	items, err := c.SearchDiscussions(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLatestProductsParsesAtom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(phFeed))
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{ProductHuntURL: srv.URL})
	items, err := c.LatestProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "CourierKit", items[0].Title)
	assert.Equal(t, "https://www.producthunt.com/posts/courierkit", items[0].URL)
	assert.Equal(t, "maker", items[0].Author)
}

func TestFetchSurfacesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(logger.Nop(), Config{ProductHuntURL: srv.URL})
	_, err := c.LatestProducts(context.Background(), 10)
	assert.Error(t, err)
}
