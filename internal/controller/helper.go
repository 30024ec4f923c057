package controller

import (
	"errors"
	"net/http"

	"github.com/HappyGroupHub/CarTunes/internal/service/room"
	"github.com/HappyGroupHub/CarTunes/pkg/rest"
)

func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrSongNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrNoCurrentSong),
		errors.Is(err, room.ErrSeekOutOfRange),
		errors.Is(err, room.ErrInvalidOrder):
		status = http.StatusBadRequest
	case errors.Is(err, room.ErrSongTooLong):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, room.ErrNotRoomMember):
		status = http.StatusForbidden
	default:
		c.logger.ErrorContext(r.Context(), "service error", "err", err)
		status = http.StatusInternalServerError
	}

	rest.WriteJSON(w, status, rest.Envelope{"error": err.Error()})
}

func (c controller) requireMember(w http.ResponseWriter, r *http.Request, roomId, userId string) bool {
	if userId == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "user_id is required"})
		return false
	}

	isMember, err := c.roomService.IsMember(r.Context(), roomId, userId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return false
	}
	if !isMember {
		rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": room.ErrNotRoomMember.Error()})
		return false
	}

	return true
}
