package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

// MaxResults caps how many results one search worker files per run.
const MaxResults = 10

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again all also am an and any app are as at be
		because been before being between both but by can could did do does doing down during each
		few for from further get had has have having he her here hers him his how i if in into is it
		its just like make me more most my no nor not now of off on once only or other our out over
		own same she should so some such than that the their them then there these they this those
		through to too under until up use used using very via want was we were what when where which
		while who whom why will with would you your idea ideas`) {
		stopwords[w] = struct{}{}
	}
}

// Keywords returns the distinct, lowercased content words of text.
func Keywords(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

/*
Similarity is the keyword overlap between an idea and a candidate as a Dice
coefficient scaled to 0..100. Either side without content words scores 0.
*/
func Similarity(ideaText, candidateText string) int {
	a := Keywords(ideaText)
	b := Keywords(candidateText)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for k := range b {
		if _, ok := a[k]; ok {
			shared++
		}
	}
	score := int(math.Round(200 * float64(shared) / float64(len(a)+len(b))))
	if score > 100 {
		score = 100
	}
	return score
}

// Query builds a short search query: the title plus the idea's most frequent
// content words, up to maxTerms terms overall.
func Query(title, content string, maxTerms int) string {
	if maxTerms <= 0 {
		maxTerms = 6
	}
	terms := make([]string, 0, maxTerms)
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if w == "" || seen[w] {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == maxTerms {
			return strings.Join(terms, " ")
		}
	}

	freq := map[string]int{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 || seen[tok] {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		freq[tok]++
	}
	ranked := make([]string, 0, len(freq))
	for w := range freq {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if freq[ranked[i]] != freq[ranked[j]] {
			return freq[ranked[i]] > freq[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	for _, w := range ranked {
		if len(terms) == maxTerms {
			break
		}
		terms = append(terms, w)
	}
	return strings.Join(terms, " ")
}

// Candidate is a raw provider hit before scoring.
type Candidate struct {
	Source      string
	Title       string
	Description string
	URL         string
}

type Options struct {
	// MinSimilarity drops candidates scoring below it.
	MinSimilarity int
	Limit         int
}

/*
Rank scores candidates against the idea text and returns results of type rt
ordered by similarity (desc), deduplicated by URL and capped at Limit
(MaxResults when zero). Relevance is similarity/100.
*/
func Rank(ideaText string, rt ideas.ResultType, cands []Candidate, opts Options) []*ideas.ResearchResult {
	limit := opts.Limit
	if limit <= 0 {
		limit = MaxResults
	}
	seen := map[string]bool{}
	out := make([]*ideas.ResearchResult, 0, len(cands))
	for _, c := range cands {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			continue
		}
		if c.URL != "" {
			if seen[c.URL] {
				continue
			}
			seen[c.URL] = true
		}
		sim := Similarity(ideaText, title+" "+c.Description)
		if sim < opts.MinSimilarity {
			continue
		}
		out = append(out, &ideas.ResearchResult{
			Type:            rt,
			Source:          c.Source,
			Title:           title,
			Description:     strings.TrimSpace(c.Description),
			URL:             c.URL,
			SimilarityScore: sim,
			RelevanceScore:  float64(sim) / 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
