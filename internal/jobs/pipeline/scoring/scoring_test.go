package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

func TestKeywordsDropsStopwordsAndShortTokens(t *testing.T) {
	kw := Keywords("An app for the Bike-Couriers of NYC, to route deliveries!")
	assert.Contains(t, kw, "bike")
	assert.Contains(t, kw, "couriers")
	assert.Contains(t, kw, "nyc")
	assert.Contains(t, kw, "deliveries")
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "app")
	assert.NotContains(t, kw, "to")
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "bike courier routing", "routing courier bike", 100},
		{"disjoint", "bike courier routing", "sourdough bread recipes", 0},
		{"half", "bike courier", "bike sharing", 50},
		{"empty candidate", "bike courier", "", 0},
		{"stopwords only", "the and of", "the and of", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Similarity(tc.a, tc.b))
		})
	}
}

func TestQueryPrefersTitleThenFrequentWords(t *testing.T) {
	q := Query("Bike Couriers", "Routing routing routing for dispatchers and dispatchers with maps", 4)
	assert.Equal(t, "bike couriers routing dispatchers", q)

	assert.Equal(t, "", Query("", "", 3))
}

func TestRankSortsCapsAndDedupes(t *testing.T) {
	idea := "bike courier routing dispatch"
	var cands []Candidate
	for i := 0; i < 15; i++ {
		cands = append(cands, Candidate{Source: "s", Title: fmt.Sprintf("bike result %d", i), URL: fmt.Sprintf("https://x/%d", i)})
	}
	cands = append(cands,
		Candidate{Source: "s", Title: "bike courier routing dispatch", URL: "https://best"},
		Candidate{Source: "s", Title: "dup", URL: "https://best"},
		Candidate{Source: "s", Title: "  ", URL: "https://blank"},
	)

	out := Rank(idea, ideas.ResultTypeWebSearch, cands, Options{})
	require.Len(t, out, MaxResults)
	assert.Equal(t, "https://best", out[0].URL)
	assert.Equal(t, 100, out[0].SimilarityScore)
	assert.InDelta(t, 1.0, out[0].RelevanceScore, 1e-9)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].SimilarityScore, out[i].SimilarityScore)
		assert.Equal(t, ideas.ResultTypeWebSearch, out[i].Type)
		assert.InDelta(t, float64(out[i].SimilarityScore)/100, out[i].RelevanceScore, 1e-9)
	}
}

func TestRankMinSimilarity(t *testing.T) {
	out := Rank("bike courier", ideas.ResultTypeProduct, []Candidate{
		{Title: "Bike tools"},
		{Title: "Cooking club"},
	}, Options{MinSimilarity: 1})
	require.Len(t, out, 1)
	assert.Equal(t, "Bike tools", out[0].Title)
}
