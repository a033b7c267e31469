package observability

import (
	"context"
	"strings"

	"github.com/yungbote/ideaforge-backend/internal/research"
)

// CountingNotifier records research lifecycle counters from the event stream
// and forwards every event unchanged.
type CountingNotifier struct {
	next    research.Notifier
	metrics *Metrics
}

func NewCountingNotifier(next research.Notifier, m *Metrics) research.Notifier {
	if next == nil {
		next = research.NopNotifier()
	}
	if m == nil {
		return next
	}
	return &CountingNotifier{next: next, metrics: m}
}

func (n *CountingNotifier) Notify(ctx context.Context, ev research.Event) {
	switch ev.Type {
	case research.EventResearchStarted:
		n.metrics.IncResearchStarted()
	case research.EventResearchCompleted:
		n.metrics.IncResearchCompleted()
	case research.EventResearchProgress:
		if p := ev.Progress; p != nil {
			switch {
			case p.Status.IsTerminal():
				n.metrics.IncWorkerTerminal(p.WorkerType.String(), string(p.Status))
			case strings.HasPrefix(p.Message, "Retrying"):
				n.metrics.IncWorkerRetry(p.WorkerType.String())
			}
		}
	}
	n.next.Notify(ctx, ev)
}
