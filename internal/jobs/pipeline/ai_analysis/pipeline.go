package ai_analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/ideaforge-backend/internal/clients/gemini"
	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
	"github.com/yungbote/ideaforge-backend/internal/jobs/pipeline/scoring"
	jobrt "github.com/yungbote/ideaforge-backend/internal/jobs/runtime"
)

const (
	source              = "ai-analysis"
	landscapeTitle      = "Market Landscape Overview"
	maxCompetitors      = scoring.MaxResults
	confidenceNovelty   = 0.8
	confidenceCategory  = 0.9
	confidenceConcepts  = 0.85
	confidenceChallenge = 0.75
	confidenceOpportun  = 0.75
)

func (p *Pipeline) Run(jc *jobrt.Context) (*jobrt.Outcome, error) {
	if p.ai == nil {
		return nil, fmt.Errorf("ai analysis provider not configured")
	}
	jc.Step("Analyzing idea with AI...")
	analysis, err := p.ai.AnalyzeIdea(jc.Ctx, jc.Item.Title, jc.Item.Content)
	if err != nil {
		return nil, err
	}
	if jc.Superseded() {
		return nil, nil
	}

	jc.Step("Saving AI insights...")
	insights, err := buildInsights(analysis)
	if err != nil {
		return nil, err
	}
	results := buildResults(jc.Item, analysis)
	p.log.Debug("ai analysis done",
		"idea_id", jc.Item.IdeaID.String(),
		"novelty", analysis.NoveltyScore,
		"competitors", len(results)-1,
	)
	return &jobrt.Outcome{Results: results, Insights: insights}, nil
}

func buildInsights(a *gemini.Analysis) ([]*ideas.AiInsight, error) {
	type entry struct {
		t    ideas.InsightType
		v    any
		conf float64
	}
	entries := []entry{
		{ideas.InsightNovelty, map[string]any{
			"score":             a.NoveltyScore,
			"existingSolutions": nonNil(a.ExistingSolutions),
		}, confidenceNovelty},
		{ideas.InsightCategory, a.Category, confidenceCategory},
		{ideas.InsightKeyConcepts, nonNil(a.KeyConcepts), confidenceConcepts},
		{ideas.InsightChallenges, nonNil(a.Challenges), confidenceChallenge},
		{ideas.InsightOpportunities, nonNil(a.Opportunities), confidenceOpportun},
	}
	out := make([]*ideas.AiInsight, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e.v)
		if err != nil {
			return nil, fmt.Errorf("encode %s insight: %w", e.t, err)
		}
		out = append(out, &ideas.AiInsight{
			Type:       e.t,
			Content:    datatypes.JSON(raw),
			Confidence: e.conf,
		})
	}
	return out, nil
}

func buildResults(item ideas.WorkItem, a *gemini.Analysis) []*ideas.ResearchResult {
	out := []*ideas.ResearchResult{{
		Type:            ideas.ResultTypeWebSearch,
		Source:          source,
		Title:           landscapeTitle,
		Description:     strings.TrimSpace(a.MarketLandscape),
		RelevanceScore:  1.0,
		SimilarityScore: 0,
	}}

	ideaText := item.Title + " " + item.Content
	seen := map[string]bool{}
	for _, name := range a.ExistingSolutions {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		sim := scoring.Similarity(ideaText, name)
		out = append(out, &ideas.ResearchResult{
			Type:            ideas.ResultTypeCompetitor,
			Source:          source,
			Title:           name,
			Description:     "Existing solution identified during AI analysis",
			SimilarityScore: sim,
			RelevanceScore:  float64(sim) / 100,
		})
		if len(out)-1 == maxCompetitors {
			break
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
