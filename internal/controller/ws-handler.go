package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/HappyGroupHub/CarTunes/internal/service/room"
	"github.com/HappyGroupHub/CarTunes/pkg/rest"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type wsInput struct {
	Type string `json:"type"`
}

// subscribe upgrades the request and attaches the connection to the room.
// The socket is server-push for room events; the only client messages are
// liveness pings.
func (c controller) subscribe(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	userId := r.URL.Query().Get("user_id")
	if userId == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "user_id is required"})
		return
	}

	if _, err := c.roomService.GetRoom(r.Context(), roomId); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "subscribe", "upgrade err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	// Subscribe syncs the new connection with a room_state event before the
	// join is announced to the room.
	if _, err := c.roomService.Subscribe(ctx, &room.SubscribeParams{
		Conn:   conn,
		RoomId: roomId,
		UserId: userId,
	}); err != nil {
		c.logger.InfoContext(ctx, "subscribe", "err", err)
		c.sender.Send(ctx, conn, room.EventError, map[string]any{"message": err.Error()})
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Control pings keep idle listeners alive; WriteControl is safe to call
	// concurrently with the sender's writes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var input wsInput
		if err := conn.ReadJSON(&input); err != nil {
			c.logger.DebugContext(ctx, "subscribe", "read err", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch input.Type {
		case "ping":
			if err := c.sender.Send(ctx, conn, room.EventPong, nil); err != nil {
				c.logger.DebugContext(ctx, "subscribe", "pong err", err)
			}
			if err := c.roomService.UpdateActivity(ctx, roomId); err != nil &&
				!errors.Is(err, room.ErrRoomNotFound) {
				c.logger.DebugContext(ctx, "subscribe", "activity err", err)
			}
		default:
			c.sender.Send(ctx, conn, room.EventError, map[string]any{
				"message": "unknown message type",
			})
		}
	}

	if err := c.roomService.Unsubscribe(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "subscribe", "unsubscribe err", err)
	}
}
