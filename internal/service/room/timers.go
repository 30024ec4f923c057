package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HappyGroupHub/CarTunes/internal/metrics"
	"github.com/HappyGroupHub/CarTunes/internal/repository/connection"
)

type SubscribeParams struct {
	Conn   *websocket.Conn
	RoomId string
	UserId string
}

// Subscribe attaches a connection to the room. Any pending idle-pause
// schedule is cancelled and the caller receives a full state snapshot to
// sync from.
func (s *service) Subscribe(ctx context.Context, params *SubscribeParams) (Snapshot, error) {
	s.logger.DebugContext(ctx, "room service:Subscribe", "roomId", params.RoomId, "userId", params.UserId)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}

	s.cancelPauseTimerLocked(r)
	r.lastActivity = s.now()

	userName := params.UserId
	if m := s.findMemberLocked(r, params.UserId); m != nil {
		userName = m.UserName
	}
	snap := s.snapshotLocked(r)
	s.mu.Unlock()

	if err := s.connRegistry.Add(params.Conn, params.RoomId, params.UserId); err != nil {
		return Snapshot{}, fmt.Errorf("failed to register connection: %w", err)
	}
	metrics.WSConnections.Inc()
	snap.ActiveConnections = s.connRegistry.RoomCount(params.RoomId)

	// Full-state sync goes to the new subscriber before anyone hears about
	// the join.
	if err := s.sender.Send(ctx, params.Conn, EventRoomState, snap); err != nil {
		if _, removeErr := s.connRegistry.Remove(params.Conn); removeErr == nil {
			metrics.WSConnections.Dec()
		}
		return Snapshot{}, fmt.Errorf("failed to send room state: %w", err)
	}

	s.sender.Broadcast(ctx, params.RoomId, EventUserJoined, map[string]any{
		"user_id":   params.UserId,
		"user_name": userName,
	})

	return snap, nil
}

// Unsubscribe detaches a connection. When the last connection of a room
// drops, an idle pause is scheduled instead of pausing immediately so a quick
// reconnect keeps the music going.
func (s *service) Unsubscribe(ctx context.Context, conn *websocket.Conn) error {
	info, err := s.connRegistry.Remove(conn)
	if err != nil {
		if errors.Is(err, connection.ErrNotFound) {
			// Already removed by a failed broadcast.
			return nil
		}
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	metrics.WSConnections.Dec()

	s.logger.DebugContext(ctx, "room service:Unsubscribe", "roomId", info.RoomId, "userId", info.UserId)

	s.mu.Lock()
	r, ok := s.rooms[info.RoomId]
	var userName string
	if ok {
		userName = info.UserId
		if m := s.findMemberLocked(r, info.UserId); m != nil {
			userName = m.UserName
		}
		if s.connRegistry.RoomCount(info.RoomId) == 0 {
			s.schedulePauseLocked(r)
		}
	}
	s.mu.Unlock()

	if ok {
		s.sender.Broadcast(ctx, info.RoomId, EventUserLeft, map[string]any{
			"user_id":   info.UserId,
			"user_name": userName,
		})
	}

	return nil
}

// schedulePauseLocked arms the idle-pause timer. An existing schedule is
// always cancelled first so a room carries at most one.
func (s *service) schedulePauseLocked(r *roomState) {
	s.cancelPauseTimerLocked(r)
	if r.currentSong == nil || !r.playback.IsPlaying {
		return
	}

	roomId := r.id
	r.pauseTimer = time.AfterFunc(s.cfg.PauseGracePeriod, func() {
		s.pauseForIdle(context.Background(), roomId)
	})
	s.logger.Debug("idle pause scheduled", "roomId", roomId, "after", s.cfg.PauseGracePeriod)
}

func (s *service) cancelPauseTimerLocked(r *roomState) {
	if r.pauseTimer != nil {
		r.pauseTimer.Stop()
		r.pauseTimer = nil
	}
}

// pauseForIdle fires when the grace period elapses with no subscribers. The
// conditions are re-checked under the lock because a subscriber may have
// returned between the timer firing and this running.
func (s *service) pauseForIdle(ctx context.Context, roomId string) {
	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return
	}
	r.pauseTimer = nil
	if s.connRegistry.RoomCount(roomId) > 0 || r.currentSong == nil || !r.playback.IsPlaying {
		s.mu.Unlock()
		return
	}

	r.playback.CurrentTime = s.currentTimeLocked(r)
	r.playback.IsPlaying = false
	r.playback.LastUpdate = s.now()
	currentTime := r.playback.CurrentTime
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "paused idle room", "roomId", roomId, "currentTime", currentTime)
	s.sender.Broadcast(ctx, roomId, EventPlaybackPaused, map[string]any{
		"is_playing":   false,
		"current_time": currentTime,
	})
}

// StartAutoAdvance runs the playback driver until the context is cancelled.
// Once a second it walks the rooms with live subscribers, skips past songs
// that ran to completion and throttles progress broadcasts.
func (s *service) StartAutoAdvance(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.advanceOnce(ctx)
			}
		}
	}()
}

func (s *service) advanceOnce(ctx context.Context) {
	for _, roomId := range s.connRegistry.RoomsWithConns() {
		s.advanceRoom(ctx, roomId)
	}
}

func (s *service) advanceRoom(ctx context.Context, roomId string) {
	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if !ok || r.currentSong == nil || !r.playback.IsPlaying {
		s.mu.Unlock()
		return
	}

	currentTime := s.currentTimeLocked(r)
	duration := float64(r.currentSong.Duration)

	if duration > 0 && currentTime >= duration {
		current := s.advanceQueueLocked(r)
		preloadIds := s.upcomingVideoIdsLocked(r)
		s.mu.Unlock()

		metrics.AutoSkips.Inc()
		s.audioCache.Preload(ctx, preloadIds, s.cfg.PreloadCount)
		s.sender.Broadcast(ctx, roomId, EventSongChanged, map[string]any{
			"current_song": current,
		})
		return
	}

	if s.now().Sub(r.lastProgressAt) < s.cfg.ProgressInterval {
		s.mu.Unlock()
		return
	}
	r.lastProgressAt = s.now()
	s.mu.Unlock()

	s.sender.Broadcast(ctx, roomId, EventPlaybackProgress, map[string]any{
		"current_time": currentTime,
		"duration":     duration,
	})
}

// StartReaper runs the inactivity sweep until the context is cancelled.
func (s *service) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reapOnce(ctx)
			}
		}
	}()
}

// reapOnce deletes rooms that have no subscribers, are not playing and have
// been inactive past the threshold.
func (s *service) reapOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var reaped []string
	for roomId, r := range s.rooms {
		if s.connRegistry.RoomCount(roomId) > 0 {
			continue
		}
		if r.playback.IsPlaying {
			continue
		}
		if now.Sub(r.lastActivity) < s.cfg.InactivityThreshold {
			continue
		}
		reaped = append(reaped, roomId)
	}
	for _, roomId := range reaped {
		s.deleteRoomLocked(s.rooms[roomId])
	}
	s.mu.Unlock()

	for _, roomId := range reaped {
		metrics.RoomsReaped.Inc()
		s.logger.InfoContext(ctx, "reaped inactive room", "roomId", roomId)
		s.sender.Broadcast(ctx, roomId, EventRoomClosing, map[string]any{
			"reason": "inactivity",
		})
	}
}
