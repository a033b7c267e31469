package research

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

type EventType string

const (
	EventResearchStarted   EventType = "ResearchStarted"
	EventResearchProgress  EventType = "ResearchProgress"
	EventResearchCompleted EventType = "ResearchCompleted"
)

// Event is a progress notification. Polling stays the contract; events only
// let connected clients refresh sooner.
type Event struct {
	Type     EventType               `json:"type"`
	IdeaID   uuid.UUID               `json:"idea_id"`
	RunID    uuid.UUID               `json:"run_id,omitempty"`
	Progress *ideas.ResearchProgress `json:"progress,omitempty"`
	At       time.Time               `json:"at"`
}

// Notifier fans events out to whoever is listening. Implementations must not
// block the caller for long and must not fail it.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// NopNotifier drops every event.
func NopNotifier() Notifier { return nopNotifier{} }
