package ideas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InsightType string

const (
	InsightNovelty       InsightType = "NOVELTY_ASSESSMENT"
	InsightCategory      InsightType = "CATEGORY"
	InsightKeyConcepts   InsightType = "KEY_CONCEPTS"
	InsightChallenges    InsightType = "CHALLENGES"
	InsightOpportunities InsightType = "OPPORTUNITIES"
)

// AiInsight is immutable once written. Insights accumulate across runs.
type AiInsight struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	IdeaID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"idea_id"`
	Type       InsightType    `gorm:"column:type;not null;index" json:"type"`
	Content    datatypes.JSON `gorm:"column:content" json:"content"`
	Confidence float64        `gorm:"column:confidence;not null" json:"confidence"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AiInsight) TableName() string { return "ai_insight" }

func (a *AiInsight) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
