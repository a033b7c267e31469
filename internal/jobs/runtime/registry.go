package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/ideaforge-backend/internal/domain/ideas"
)

// Handler is one research technique. Run must not write results itself; it
// returns them and the Runner persists them with the terminal transition.
type Handler interface {
	Type() ideas.WorkerType
	Run(ctx *Context) (*Outcome, error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[ideas.WorkerType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ideas.WorkerType]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if !t.Valid() {
		return fmt.Errorf("handler Type() %q is not a known worker type", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for worker_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(wt ideas.WorkerType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[wt]
	return h, ok
}

// Types lists registered worker types in a stable order.
func (r *Registry) Types() []ideas.WorkerType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := map[ideas.WorkerType]int{}
	for i, wt := range ideas.AllWorkerTypes() {
		order[wt] = i
	}
	out := make([]ideas.WorkerType, 0, len(r.handlers))
	for wt := range r.handlers {
		out = append(out, wt)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
