package ideas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IdeaStatus string

const (
	IdeaStatusIdle        IdeaStatus = "IDLE"
	IdeaStatusResearching IdeaStatus = "RESEARCHING"
)

// Idea is the root aggregate: progress rows, results and insights are owned
// by exactly one idea and are deleted with it.
type Idea struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title            string         `gorm:"column:title;not null" json:"title"`
	Content          datatypes.JSON `gorm:"column:content" json:"content"`
	ContentText      string         `gorm:"column:content_text;not null" json:"content_text"`
	Status           IdeaStatus     `gorm:"column:status;not null;index" json:"status"`
	LastResearchedAt *time.Time     `gorm:"column:last_researched_at" json:"last_researched_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (Idea) TableName() string { return "idea" }

func (i *Idea) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = IdeaStatusIdle
	}
	return nil
}

func (i *Idea) IsResearching() bool { return i != nil && i.Status == IdeaStatusResearching }

// IdeaCounts are the derived aggregates shown next to an idea.
type IdeaCounts struct {
	ResearchResults int64 `json:"research_results"`
	AiInsights      int64 `json:"ai_insights"`
}
