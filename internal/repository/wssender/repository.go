// Package wssender delivers typed events to room subscribers over their
// websocket connections. Writes are serialized through a single mutex because
// gorilla/websocket allows at most one concurrent writer per connection and
// broadcasts originate from several goroutines.
package wssender

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HappyGroupHub/CarTunes/internal/metrics"
	"github.com/HappyGroupHub/CarTunes/internal/repository/connection"
)

const writeWait = 10 * time.Second

type iConnRegistry interface {
	RoomConns(roomId string) []*websocket.Conn
	Remove(conn *websocket.Conn) (connection.Info, error)
}

type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type repo struct {
	connRegistry iConnRegistry
	logger       *slog.Logger

	mu sync.Mutex
}

func NewRepo(connRegistry iConnRegistry, logger *slog.Logger) *repo {
	return &repo{
		connRegistry: connRegistry,
		logger:       logger,
	}
}

// Broadcast writes the event to every connection in the room. A connection
// that fails to accept the write is dropped from the registry; the reader
// goroutine owning it observes the removal and closes it. Every write carries
// a deadline so one wedged socket cannot stall delivery to the rest.
func (r *repo) Broadcast(ctx context.Context, roomId, eventType string, data any) {
	msg := Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	conns := r.connRegistry.RoomConns(roomId)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			r.logger.DebugContext(ctx, "wssender:Broadcast", "roomId", roomId, "eventType", eventType, "error", err)
			metrics.BroadcastErrors.Inc()
			if _, err := r.connRegistry.Remove(conn); err != nil {
				r.logger.DebugContext(ctx, "wssender:Broadcast", "roomId", roomId, "error", err)
			}
		}
	}
}

// Send writes the event to a single connection.
func (r *repo) Send(ctx context.Context, conn *websocket.Conn, eventType string, data any) error {
	msg := Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
