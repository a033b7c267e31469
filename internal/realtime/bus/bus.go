package bus

import (
	"context"

	"github.com/yungbote/ideaforge-backend/internal/realtime"
)

// Bus fans research events out to every API process. Each process runs one
// forwarder that hands received messages to its local SSE hub.
type Bus interface {
	realtime.Publisher
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	// Ping backs the redis_up gauge.
	Ping(ctx context.Context) error
	Close() error
}

var _ Bus = (*redisBus)(nil)
