package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"

	"github.com/HappyGroupHub/CarTunes/internal/repository/connection"
)

// repo keeps both directions of the socket relation so connect, disconnect and
// fan-out are all O(1) lookups.
type repo struct {
	roomConns map[string]map[*websocket.Conn]struct{}
	connInfo  map[*websocket.Conn]connection.Info
	mu        sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		roomConns: make(map[string]map[*websocket.Conn]struct{}),
		connInfo:  make(map[*websocket.Conn]connection.Info),
	}
}

func (r *repo) Add(conn *websocket.Conn, roomId, userId string) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "roomId", roomId, "userId", userId)
	if _, ok := r.connInfo[conn]; ok {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	conns, ok := r.roomConns[roomId]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		r.roomConns[roomId] = conns
	}
	conns[conn] = struct{}{}
	r.connInfo[conn] = connection.Info{RoomId: roomId, UserId: userId}

	slog.Debug(funcName, "result", "OK")
	return nil
}

// Remove drops the socket from both maps. Closing the socket stays with the
// websocket handler that owns it; the registry holds weak relations only.
// Returns the room/user the socket belonged to so callers can run their
// disconnect transitions.
func (r *repo) Remove(conn *websocket.Conn) (connection.Info, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.connInfo[conn]
	if !ok {
		slog.Debug(funcName, "error", connection.ErrNotFound)
		return connection.Info{}, connection.ErrNotFound
	}

	delete(r.connInfo, conn)
	if conns, ok := r.roomConns[info.RoomId]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.roomConns, info.RoomId)
		}
	}

	slog.Debug(funcName, "result", info)
	return info, nil
}

func (r *repo) Info(conn *websocket.Conn) (connection.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.connInfo[conn]
	if !ok {
		return connection.Info{}, connection.ErrNotFound
	}

	return info, nil
}

// RoomConns returns a snapshot slice so broadcasting never iterates a map that
// a disconnect is mutating.
func (r *repo) RoomConns(roomId string) []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.roomConns[roomId]))
	for conn := range r.roomConns[roomId] {
		conns = append(conns, conn)
	}

	return conns
}

func (r *repo) RoomCount(roomId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roomConns[roomId])
}

func (r *repo) RoomsWithConns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.roomConns)
}
