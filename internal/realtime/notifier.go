package realtime

import (
	"context"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
	"github.com/yungbote/ideaforge-backend/internal/research"
)

// Publisher carries messages between processes. The Redis bus implements it.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

/*
Notifier turns research events into SSE messages on the idea's channel. With
a Publisher the message goes through it, and every process's forwarder
(including this one) broadcasts it locally. Without one it is broadcast to the
local hub directly.
*/
type Notifier struct {
	log *logger.Logger
	hub *SSEHub
	pub Publisher
}

func NewNotifier(log *logger.Logger, hub *SSEHub, pub Publisher) *Notifier {
	return &Notifier{log: log.With("component", "ResearchNotifier"), hub: hub, pub: pub}
}

func (n *Notifier) Notify(ctx context.Context, ev research.Event) {
	msg := SSEMessage{
		Channel: IdeaChannel(ev.IdeaID),
		Event:   eventFor(ev.Type),
		Data:    ev,
	}
	if n.pub != nil {
		if err := n.pub.Publish(ctx, msg); err != nil {
			n.log.Warn("publish research event failed, delivering locally", "idea_id", ev.IdeaID.String(), "error", err)
		} else {
			return
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

func eventFor(t research.EventType) SSEEvent {
	switch t {
	case research.EventResearchStarted:
		return SSEEventResearchStarted
	case research.EventResearchProgress:
		return SSEEventResearchProgress
	case research.EventResearchCompleted:
		return SSEEventResearchCompleted
	}
	return SSEEvent(t)
}
