package room

import (
	"context"

	"github.com/HappyGroupHub/CarTunes/internal/metrics"
)

type CreateRoomParams struct {
	UserId   string
	UserName string
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (Snapshot, error) {
	s.logger.DebugContext(ctx, "room service:CreateRoom", "params", params)

	s.mu.Lock()

	roomId, err := s.allocateRoomCodeLocked()
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}

	now := s.now()
	r := &roomState{
		id:        roomId,
		createdAt: now,
		creatorId: params.UserId,
		members: []Member{{
			UserId:   params.UserId,
			UserName: params.UserName,
			JoinedAt: now,
		}},
		playback: PlaybackState{
			IsPlaying:   false,
			CurrentTime: 0,
			LastUpdate:  now,
		},
		lastActivity: now,
	}
	s.rooms[roomId] = r
	s.userRooms[params.UserId] = roomId
	metrics.ActiveRooms.Set(float64(len(s.rooms)))

	snap := s.snapshotLocked(r)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "room created", "roomId", roomId, "creatorId", params.UserId)

	return snap, nil
}

func (s *service) allocateRoomCodeLocked() (string, error) {
	for i := 0; i < codeAllocAttempts; i++ {
		code := s.generator.GenerateRandomString(s.cfg.RoomCodeLength)
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceFull
}

type JoinRoomParams struct {
	RoomId   string
	UserId   string
	UserName string
}

// JoinRoom is idempotent: joining a room the user already belongs to only
// refreshes activity.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (Snapshot, error) {
	s.logger.DebugContext(ctx, "room service:JoinRoom", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}

	if s.findMemberLocked(r, params.UserId) == nil {
		r.members = append(r.members, Member{
			UserId:   params.UserId,
			UserName: params.UserName,
			JoinedAt: s.now(),
		})
		s.userRooms[params.UserId] = params.RoomId
	}
	r.lastActivity = s.now()

	snap := s.snapshotLocked(r)
	s.mu.Unlock()

	snap.ActiveConnections = s.connRegistry.RoomCount(params.RoomId)

	return snap, nil
}

type LeaveRoomParams struct {
	RoomId string
	UserId string
}

// LeaveRoom removes the member and deletes the room immediately when the
// last member leaves.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	s.logger.DebugContext(ctx, "room service:LeaveRoom", "params", params)

	s.mu.Lock()
	r, ok := s.rooms[params.RoomId]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	var userName string
	left := false
	for i, m := range r.members {
		if m.UserId == params.UserId {
			userName = m.UserName
			r.members = append(r.members[:i], r.members[i+1:]...)
			left = true
			break
		}
	}
	if s.userRooms[params.UserId] == params.RoomId {
		delete(s.userRooms, params.UserId)
	}
	r.lastActivity = s.now()

	deleted := false
	if len(r.members) == 0 {
		s.deleteRoomLocked(r)
		deleted = true
	}
	s.mu.Unlock()

	if left {
		s.sender.Broadcast(ctx, params.RoomId, EventUserLeft, map[string]any{
			"user_id":   params.UserId,
			"user_name": userName,
		})
	}
	if deleted {
		s.logger.InfoContext(ctx, "room deleted, last member left", "roomId", params.RoomId)
		s.sender.Broadcast(ctx, params.RoomId, EventRoomClosing, map[string]any{
			"reason": "empty",
		})
	}

	return nil
}

func (s *service) GetRoom(ctx context.Context, roomId string) (Snapshot, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}
	snap := s.snapshotLocked(r)
	s.mu.Unlock()

	snap.ActiveConnections = s.connRegistry.RoomCount(roomId)

	return snap, nil
}

// GetUserRoom returns the room the user currently belongs to.
func (s *service) GetUserRoom(ctx context.Context, userId string) (Snapshot, error) {
	s.mu.Lock()
	roomId, ok := s.userRooms[userId]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}
	r, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}
	snap := s.snapshotLocked(r)
	s.mu.Unlock()

	snap.ActiveConnections = s.connRegistry.RoomCount(roomId)

	return snap, nil
}

func (s *service) IsMember(ctx context.Context, roomId, userId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomId]
	if !ok {
		return false, ErrRoomNotFound
	}

	return s.findMemberLocked(r, userId) != nil, nil
}

// UpdateActivity refreshes the room inactivity clock.
func (s *service) UpdateActivity(ctx context.Context, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	r.lastActivity = s.now()

	return nil
}

func (s *service) findMemberLocked(r *roomState, userId string) *Member {
	for i := range r.members {
		if r.members[i].UserId == userId {
			return &r.members[i]
		}
	}
	return nil
}

// deleteRoomLocked tears down the room and its derived indexes. The pause
// timer is cancelled so a pending idle pause cannot fire for a dead room.
func (s *service) deleteRoomLocked(r *roomState) {
	s.cancelPauseTimerLocked(r)
	for _, m := range r.members {
		if s.userRooms[m.UserId] == r.id {
			delete(s.userRooms, m.UserId)
		}
	}
	delete(s.rooms, r.id)
	metrics.ActiveRooms.Set(float64(len(s.rooms)))
}

// snapshotLocked deep-copies the room. ActiveConnections is left zero; the
// caller fills it from the connection registry outside the engine lock.
func (s *service) snapshotLocked(r *roomState) Snapshot {
	snap := Snapshot{
		RoomId:    r.id,
		CreatedAt: r.createdAt,
		CreatorId: r.creatorId,
		Members:   make([]Member, len(r.members)),
		Queue:     make([]Song, len(r.queue)),
		Playback: PlaybackState{
			IsPlaying:   r.playback.IsPlaying,
			CurrentTime: s.currentTimeLocked(r),
			LastUpdate:  r.playback.LastUpdate,
		},
	}
	copy(snap.Members, r.members)
	for i, song := range r.queue {
		snap.Queue[i] = *song
	}
	if r.currentSong != nil {
		current := *r.currentSong
		snap.CurrentSong = &current
	}
	return snap
}
