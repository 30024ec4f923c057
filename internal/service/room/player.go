package room

import "context"

type UpdatePlaybackParams struct {
	RoomId    string
	IsPlaying bool
	// CurrentTime optionally re-checkpoints the position alongside the
	// play/pause flip.
	CurrentTime *float64
}

func (s *service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) error {
	s.logger.DebugContext(ctx, "room service:UpdatePlayback", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	// The checkpoint is only overwritten when the caller supplies one; a
	// flag flip without a position reads back from the last explicit
	// checkpoint. Idle pause is the one path that checkpoints derived time.
	if params.CurrentTime != nil {
		r.playback.CurrentTime = *params.CurrentTime
	}
	r.playback.IsPlaying = params.IsPlaying
	r.playback.LastUpdate = s.now()
	if params.IsPlaying {
		r.hasEverPlayed = true
	}
	r.lastActivity = s.now()

	currentTime := r.playback.CurrentTime
	s.mu.Unlock()

	eventType := EventPlaybackPaused
	if params.IsPlaying {
		eventType = EventPlaybackStarted
	}
	s.sender.Broadcast(ctx, params.RoomId, eventType, map[string]any{
		"is_playing":   params.IsPlaying,
		"current_time": currentTime,
	})

	return nil
}

type SeekParams struct {
	RoomId   string
	Position float64
}

func (s *service) Seek(ctx context.Context, params *SeekParams) error {
	s.logger.DebugContext(ctx, "room service:Seek", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	if r.currentSong == nil {
		s.mu.Unlock()
		return ErrNoCurrentSong
	}
	if params.Position < 0 || (r.currentSong.Duration > 0 && params.Position > float64(r.currentSong.Duration)) {
		s.mu.Unlock()
		return ErrSeekOutOfRange
	}

	r.playback.CurrentTime = params.Position
	r.playback.LastUpdate = s.now()
	r.lastActivity = s.now()
	isPlaying := r.playback.IsPlaying
	s.mu.Unlock()

	s.sender.Broadcast(ctx, params.RoomId, EventPlaybackSeeked, map[string]any{
		"is_playing":   isPlaying,
		"current_time": params.Position,
	})

	return nil
}

// CurrentTime derives the live playback position without mutating anything.
func (s *service) CurrentTime(ctx context.Context, roomId string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomId]
	if !ok {
		return 0, ErrRoomNotFound
	}

	return s.currentTimeLocked(r), nil
}

// currentTimeLocked computes checkpoint + elapsed for a playing room, the
// checkpoint as-is for a paused one, clamped to the song duration. A song
// without a known duration never clamps.
func (s *service) currentTimeLocked(r *roomState) float64 {
	if r.currentSong == nil {
		return 0
	}
	t := r.playback.CurrentTime
	if r.playback.IsPlaying {
		t += s.now().Sub(r.playback.LastUpdate).Seconds()
	}
	if d := float64(r.currentSong.Duration); d > 0 && t > d {
		return d
	}
	return t
}
