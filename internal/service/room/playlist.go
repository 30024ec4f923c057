package room

import (
	"context"
	"fmt"

	"github.com/HappyGroupHub/CarTunes/internal/metrics"
)

type AddSongParams struct {
	RoomId        string
	RequesterId   string
	RequesterName string
	VideoId       string
	Title         string
	Channel       *string
	Duration      int
	Thumbnail     string
}

// AddSong appends a song to the queue, or promotes it to current when no
// song is playing. A promoted song starts paused until someone has explicitly
// played in this room once; after that new heads start playing on their own.
func (s *service) AddSong(ctx context.Context, params *AddSongParams) (Song, error) {
	s.logger.DebugContext(ctx, "room service:AddSong", "roomId", params.RoomId, "videoId", params.VideoId)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return Song{}, ErrRoomNotFound
	}
	if s.cfg.SongLengthLimit > 0 && params.Duration > s.cfg.SongLengthLimit {
		s.mu.Unlock()
		return Song{}, ErrSongTooLong
	}

	song := &Song{
		Id:            fmt.Sprintf("%s_%d_%s", params.RoomId, len(r.queue), params.VideoId),
		VideoId:       params.VideoId,
		Title:         params.Title,
		Channel:       params.Channel,
		Duration:      params.Duration,
		Thumbnail:     params.Thumbnail,
		RequesterId:   params.RequesterId,
		RequesterName: params.RequesterName,
		AddedAt:       s.now(),
		Position:      len(r.queue),
	}
	r.queue = append(r.queue, song)

	becameCurrent := false
	if r.currentSong == nil {
		s.promoteHeadLocked(r, r.hasEverPlayed)
		becameCurrent = true
	}
	r.lastActivity = s.now()

	added := *song
	var current *Song
	if becameCurrent && r.currentSong != nil {
		c := *r.currentSong
		current = &c
	}
	preloadIds := s.upcomingVideoIdsLocked(r)
	s.mu.Unlock()

	metrics.SongsAdded.Inc()
	s.audioCache.Preload(ctx, preloadIds, s.cfg.PreloadCount)

	s.sender.Broadcast(ctx, params.RoomId, EventSongAdded, map[string]any{
		"song": added,
	})
	if becameCurrent {
		s.sender.Broadcast(ctx, params.RoomId, EventSongChanged, map[string]any{
			"current_song": current,
		})
	}

	return added, nil
}

// SkipToNext advances to the next queued song. An explicit skip is a play
// gesture: the new current song starts playing and the room is marked as
// having played.
func (s *service) SkipToNext(ctx context.Context, roomId string) (*Song, error) {
	s.logger.DebugContext(ctx, "room service:SkipToNext", "roomId", roomId)

	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	current := s.advanceQueueLocked(r)
	r.lastActivity = s.now()
	preloadIds := s.upcomingVideoIdsLocked(r)
	s.mu.Unlock()

	s.audioCache.Preload(ctx, preloadIds, s.cfg.PreloadCount)
	s.sender.Broadcast(ctx, roomId, EventSongChanged, map[string]any{
		"current_song": current,
	})

	return current, nil
}

type RemoveSongParams struct {
	RoomId string
	SongId string
}

func (s *service) RemoveSong(ctx context.Context, params *RemoveSongParams) error {
	s.logger.DebugContext(ctx, "room service:RemoveSong", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	removed := false
	for i, song := range r.queue {
		if song.Id == params.SongId {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		s.mu.Unlock()
		return ErrSongNotFound
	}
	s.reindexQueueLocked(r)
	r.lastActivity = s.now()
	s.mu.Unlock()

	s.sender.Broadcast(ctx, params.RoomId, EventSongRemoved, map[string]any{
		"song_id": params.SongId,
	})

	return nil
}

type ReorderQueueParams struct {
	RoomId  string
	SongIds []string
}

// ReorderQueue replaces the queue order with the given permutation. The ids
// must be exactly the current queue's ids; anything missing, unknown or
// duplicated rejects the whole request and the queue is left untouched.
func (s *service) ReorderQueue(ctx context.Context, params *ReorderQueueParams) error {
	s.logger.DebugContext(ctx, "room service:ReorderQueue", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	if len(params.SongIds) != len(r.queue) {
		s.mu.Unlock()
		return ErrInvalidOrder
	}

	byId := make(map[string]*Song, len(r.queue))
	for _, song := range r.queue {
		byId[song.Id] = song
	}

	reordered := make([]*Song, 0, len(params.SongIds))
	seen := make(map[string]struct{}, len(params.SongIds))
	for _, id := range params.SongIds {
		song, ok := byId[id]
		if _, dup := seen[id]; !ok || dup {
			s.mu.Unlock()
			return ErrInvalidOrder
		}
		seen[id] = struct{}{}
		reordered = append(reordered, song)
	}

	r.queue = reordered
	s.reindexQueueLocked(r)
	r.lastActivity = s.now()

	queue := make([]Song, len(r.queue))
	for i, song := range r.queue {
		queue[i] = *song
	}
	var nextVideoId string
	if len(r.queue) > 0 {
		nextVideoId = r.queue[0].VideoId
	}
	s.mu.Unlock()

	if nextVideoId != "" {
		s.audioCache.RefreshAccess(nextVideoId)
	}
	s.sender.Broadcast(ctx, params.RoomId, EventQueueReordered, map[string]any{
		"queue": queue,
	})

	return nil
}

// DropUnplayable removes every occurrence of the video from the room after
// its audio could not be fetched. When the current song is the unplayable
// one the room advances past it.
func (s *service) DropUnplayable(ctx context.Context, roomId, videoId string) error {
	s.logger.DebugContext(ctx, "room service:DropUnplayable", "roomId", roomId, "videoId", videoId)

	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	var removedIds []string
	kept := r.queue[:0]
	for _, song := range r.queue {
		if song.VideoId == videoId {
			removedIds = append(removedIds, song.Id)
			continue
		}
		kept = append(kept, song)
	}
	r.queue = kept
	s.reindexQueueLocked(r)

	var current *Song
	advanced := false
	if r.currentSong != nil && r.currentSong.VideoId == videoId {
		current = s.advanceQueueLocked(r)
		advanced = true
	}
	preloadIds := s.upcomingVideoIdsLocked(r)
	s.mu.Unlock()

	for _, id := range removedIds {
		s.sender.Broadcast(ctx, roomId, EventSongRemoved, map[string]any{
			"song_id": id,
		})
	}
	if advanced {
		s.logger.InfoContext(ctx, "dropped unplayable current song", "roomId", roomId, "videoId", videoId)
		s.audioCache.Preload(ctx, preloadIds, s.cfg.PreloadCount)
		s.sender.Broadcast(ctx, roomId, EventSongChanged, map[string]any{
			"current_song": current,
		})
	}

	return nil
}

// advanceQueueLocked moves the queue head into the current slot. Advancing
// onto a real song is always a play transition and sets the sticky played
// flag; draining the queue leaves the room paused at zero.
func (s *service) advanceQueueLocked(r *roomState) *Song {
	if len(r.queue) == 0 {
		r.currentSong = nil
		r.playback = PlaybackState{IsPlaying: false, CurrentTime: 0, LastUpdate: s.now()}
		return nil
	}

	s.promoteHeadLocked(r, true)
	current := *r.currentSong
	return &current
}

// promoteHeadLocked pops the queue head into the current slot and resets the
// playback checkpoint to zero.
func (s *service) promoteHeadLocked(r *roomState, play bool) {
	r.currentSong = r.queue[0]
	r.queue = r.queue[1:]
	s.reindexQueueLocked(r)
	r.playback = PlaybackState{
		IsPlaying:   play,
		CurrentTime: 0,
		LastUpdate:  s.now(),
	}
	if play {
		r.hasEverPlayed = true
	}
}

func (s *service) reindexQueueLocked(r *roomState) {
	for i, song := range r.queue {
		song.Position = i
	}
}

// upcomingVideoIdsLocked lists the current song followed by the queue, the
// order preloading walks.
func (s *service) upcomingVideoIdsLocked(r *roomState) []string {
	ids := make([]string, 0, len(r.queue)+1)
	if r.currentSong != nil {
		ids = append(ids, r.currentSong.VideoId)
	}
	for _, song := range r.queue {
		ids = append(ids, song.VideoId)
	}
	return ids
}
