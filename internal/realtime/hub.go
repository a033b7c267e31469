package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

type SSEEvent string

const (
	SSEEventResearchStarted   SSEEvent = "ResearchStarted"
	SSEEventResearchProgress  SSEEvent = "ResearchProgress"
	SSEEventResearchCompleted SSEEvent = "ResearchCompleted"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// IdeaChannel is the channel carrying every event for one idea.
func IdeaChannel(ideaID uuid.UUID) string { return "idea:" + ideaID.String() }

type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	once     sync.Once
}

type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
	heartbeat     time.Duration
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
		heartbeat:     15 * time.Second,
	}
}

func (hub *SSEHub) NewSSEClient() *SSEClient {
	return &SSEClient{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, 32),
		done:     make(chan struct{}),
	}
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := hub.subscriptions[channel]
	if !ok {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for ch := range client.Channels {
		if subs, ok := hub.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

// Subscribers reports how many clients listen on channel.
func (hub *SSEHub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

// Broadcast never blocks: a client whose buffer is full misses the message
// and catches up on its next poll.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID)
		}
	}
}

func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				hub.logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
			flusher.Flush()
		}
	}
}

func (hub *SSEHub) CloseClient(client *SSEClient) {
	client.once.Do(func() {
		close(client.done)
		hub.RemoveClient(client)
		hub.mu.Lock()
		close(client.Outbound)
		hub.mu.Unlock()
	})
}
