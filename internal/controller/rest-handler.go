package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/HappyGroupHub/CarTunes/internal/service/room"
	"github.com/HappyGroupHub/CarTunes/pkg/rest"
)

type createRoomInput struct {
	UserId   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=32"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomInput

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "createRoom", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "createRoom", "validate err", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	snap, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		UserId:   req.UserId,
		UserName: req.UserName,
	})
	if err != nil {
		c.logger.InfoContext(r.Context(), "createRoom", "err", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": snap})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snap, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snap})
}

func (c controller) getUserRoom(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "user-id")

	snap, err := c.roomService.GetUserRoom(r.Context(), userId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snap})
}

func (c controller) getQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snap, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{
		"current_song": snap.CurrentSong,
		"queue":        snap.Queue,
	}})
}

type joinRoomInput struct {
	UserId   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=32"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req joinRoomInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "joinRoom", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "joinRoom", "validate err", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	snap, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomId:   roomId,
		UserId:   req.UserId,
		UserName: req.UserName,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": snap})
}

type leaveRoomInput struct {
	UserId string `json:"user_id" validate:"required"`
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req leaveRoomInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "leaveRoom", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if err := c.roomService.LeaveRoom(r.Context(), &room.LeaveRoomParams{
		RoomId: roomId,
		UserId: req.UserId,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "OK"})
}

type addSongInput struct {
	UserId   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name" validate:"required,max=32"`
	VideoId  string `json:"video_id" validate:"required,len=11"`
}

func (c controller) addSong(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req addSongInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "addSong", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "addSong", "validate err", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if !c.requireMember(w, r, roomId, req.UserId) {
		return
	}

	track, err := c.resolveTrack(r.Context(), req.VideoId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "addSong", "resolve err", err)
		rest.WriteJSON(w, http.StatusBadGateway, rest.Envelope{"error": "failed to resolve video"})
		return
	}

	var channel *string
	if track.Channel != "" {
		ch := track.Channel
		channel = &ch
	}

	song, err := c.roomService.AddSong(r.Context(), &room.AddSongParams{
		RoomId:        roomId,
		RequesterId:   req.UserId,
		RequesterName: req.UserName,
		VideoId:       track.VideoId,
		Title:         track.Title,
		Channel:       channel,
		Duration:      track.Duration,
		Thumbnail:     track.Thumbnail,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": song})
}

func (c controller) removeSong(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	songId := chi.URLParam(r, "song-id")
	userId := r.URL.Query().Get("user_id")

	if !c.requireMember(w, r, roomId, userId) {
		return
	}

	if err := c.roomService.RemoveSong(r.Context(), &room.RemoveSongParams{
		RoomId: roomId,
		SongId: songId,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "OK"})
}

type reorderQueueInput struct {
	UserId  string   `json:"user_id" validate:"required"`
	SongIds []string `json:"song_ids" validate:"required"`
}

func (c controller) reorderQueue(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req reorderQueueInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "reorderQueue", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if !c.requireMember(w, r, roomId, req.UserId) {
		return
	}

	if err := c.roomService.ReorderQueue(r.Context(), &room.ReorderQueueParams{
		RoomId:  roomId,
		SongIds: req.SongIds,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "OK"})
}

type updatePlaybackInput struct {
	UserId      string   `json:"user_id" validate:"required"`
	IsPlaying   bool     `json:"is_playing"`
	CurrentTime *float64 `json:"current_time"`
}

func (c controller) updatePlayback(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req updatePlaybackInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "updatePlayback", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if !c.requireMember(w, r, roomId, req.UserId) {
		return
	}

	if err := c.roomService.UpdatePlayback(r.Context(), &room.UpdatePlaybackParams{
		RoomId:      roomId,
		IsPlaying:   req.IsPlaying,
		CurrentTime: req.CurrentTime,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "OK"})
}

type skipToNextInput struct {
	UserId string `json:"user_id" validate:"required"`
}

func (c controller) skipToNext(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req skipToNextInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "skipToNext", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if !c.requireMember(w, r, roomId, req.UserId) {
		return
	}

	current, err := c.roomService.SkipToNext(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": map[string]any{"current_song": current}})
}

type seekInput struct {
	UserId   string  `json:"user_id" validate:"required"`
	Position float64 `json:"position" validate:"gte=0"`
}

func (c controller) seek(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req seekInput
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "seek", "read json err", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if !c.requireMember(w, r, roomId, req.UserId) {
		return
	}

	if err := c.roomService.Seek(r.Context(), &room.SeekParams{
		RoomId:   roomId,
		Position: req.Position,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "OK"})
}

func (c controller) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "query is required"})
		return
	}

	results, err := c.resolver.Search(r.Context(), query)
	if err != nil {
		c.logger.InfoContext(r.Context(), "search", "err", err)
		rest.WriteJSON(w, http.StatusBadGateway, rest.Envelope{"error": "search failed"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": results})
}

// streamAudio serves the cached audio file, downloading it first when needed.
// When the download fails and the caller named its room, the video is dropped
// from that room so the queue does not stall on it.
func (c controller) streamAudio(w http.ResponseWriter, r *http.Request) {
	videoId := chi.URLParam(r, "video-id")
	roomId := r.URL.Query().Get("room_id")

	path, err := c.audioCache.Download(r.Context(), videoId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "streamAudio", "videoId", videoId, "err", err)
		if roomId != "" {
			if dropErr := c.roomService.DropUnplayable(r.Context(), roomId, videoId); dropErr != nil &&
				!errors.Is(dropErr, room.ErrRoomNotFound) {
				c.logger.InfoContext(r.Context(), "streamAudio", "drop err", dropErr)
			}
		}
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "audio not available"})
		return
	}

	if roomId != "" {
		// Streaming is a use of the room, keep the reaper away.
		if err := c.roomService.UpdateActivity(r.Context(), roomId); err != nil &&
			!errors.Is(err, room.ErrRoomNotFound) {
			c.logger.InfoContext(r.Context(), "streamAudio", "activity err", err)
		}
	}

	http.ServeFile(w, r, path)
}
