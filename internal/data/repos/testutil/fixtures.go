package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

// Words returns a string of n distinct words.
func Words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word" + string(rune('a'+i%26)) + strings.Repeat("x", i/26)
	}
	return strings.Join(parts, " ")
}

func SeedIdea(tb testing.TB, ctx context.Context, tx *gorm.DB, title, text string) *types.Idea {
	tb.Helper()
	idea := &types.Idea{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       title,
		Content:     datatypes.JSON([]byte("{}")),
		ContentText: text,
		Status:      types.IdeaStatusIdle,
	}
	if err := tx.WithContext(ctx).Create(idea).Error; err != nil {
		tb.Fatalf("seed idea: %v", err)
	}
	return idea
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, ideaID, runID uuid.UUID, wt types.WorkerType, status types.ProgressStatus) *types.ResearchProgress {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.ResearchProgress{
		ID:         uuid.New(),
		IdeaID:     ideaID,
		RunID:      runID,
		WorkerType: wt,
		Status:     status,
		Message:    wt.InitialMessage(),
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if status.IsTerminal() {
		p.CompletedAt = &now
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func SeedResult(tb testing.TB, ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, title string, similarity int, dismissed bool) *types.ResearchResult {
	tb.Helper()
	r := &types.ResearchResult{
		ID:              uuid.New(),
		IdeaID:          ideaID,
		Type:            types.ResultTypeWebSearch,
		Source:          "test",
		Title:           title,
		URL:             "https://example.com/" + title,
		RelevanceScore:  0.5,
		SimilarityScore: similarity,
		Dismissed:       dismissed,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed result: %v", err)
	}
	return r
}
