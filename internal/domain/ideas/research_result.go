package ideas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResultType string

const (
	ResultTypeCompetitor ResultType = "COMPETITOR"
	ResultTypeWebSearch  ResultType = "WEB_SEARCH"
	ResultTypeProduct    ResultType = "PRODUCT"
	ResultTypeRepository ResultType = "REPOSITORY"
	ResultTypeDiscussion ResultType = "DISCUSSION"
)

// ResearchResult is an artifact a worker discovered. After creation only the
// Dismissed flag changes.
type ResearchResult struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IdeaID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"idea_id"`
	Type            ResultType `gorm:"column:type;not null;index" json:"type"`
	Source          string     `gorm:"column:source;not null" json:"source"`
	Title           string     `gorm:"column:title;not null" json:"title"`
	Description     string     `gorm:"column:description" json:"description"`
	URL             string     `gorm:"column:url" json:"url,omitempty"`
	RelevanceScore  float64    `gorm:"column:relevance_score;not null" json:"relevance_score"`
	SimilarityScore int        `gorm:"column:similarity_score;not null;index" json:"similarity_score"`
	Dismissed       bool       `gorm:"column:dismissed;not null;index" json:"dismissed"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
}

func (ResearchResult) TableName() string { return "research_result" }

func (r *ResearchResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
