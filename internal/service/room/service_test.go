package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HappyGroupHub/CarTunes/internal/repository/connection/inmemory"
	"github.com/HappyGroupHub/CarTunes/pkg/randstr"
)

type sentEvent struct {
	roomId    string
	eventType string
	data      map[string]any
}

type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingSender) Broadcast(ctx context.Context, roomId, eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, _ := data.(map[string]any)
	r.events = append(r.events, sentEvent{roomId: roomId, eventType: eventType, data: payload})
}

func (r *recordingSender) Send(ctx context.Context, conn *websocket.Conn, eventType string, data any) error {
	return nil
}

func (r *recordingSender) ofType(eventType string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, ev := range r.events {
		if ev.eventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type recordingCache struct {
	mu        sync.Mutex
	preloaded [][]string
	refreshed []string
}

func (r *recordingCache) Preload(ctx context.Context, videoIds []string, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(videoIds))
	copy(ids, videoIds)
	r.preloaded = append(r.preloaded, ids)
}

func (r *recordingCache) RefreshAccess(videoId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = append(r.refreshed, videoId)
}

func newTestService(t *testing.T) (*service, *recordingSender, *recordingCache) {
	t.Helper()

	sender := &recordingSender{}
	audioCache := &recordingCache{}
	svc := NewService(
		inmemory.NewRepo(),
		sender,
		audioCache,
		randstr.New([]byte(DefaultRoomCodeCharset)),
		slog.Default(),
		Config{
			RoomCodeLength:      6,
			SongLengthLimit:     1800,
			PauseGracePeriod:    25 * time.Millisecond,
			InactivityThreshold: time.Hour,
			ProgressInterval:    5 * time.Second,
			PreloadCount:        5,
		},
	)
	return svc, sender, audioCache
}

func createRoom(t *testing.T, svc *service) string {
	t.Helper()

	snap, err := svc.CreateRoom(context.Background(), &CreateRoomParams{UserId: "user-1", UserName: "Alice"})
	require.NoError(t, err)
	require.Len(t, snap.RoomId, 6)
	return snap.RoomId
}

func addSong(t *testing.T, svc *service, roomId, videoId string, duration int) Song {
	t.Helper()

	song, err := svc.AddSong(context.Background(), &AddSongParams{
		RoomId:        roomId,
		RequesterId:   "user-1",
		RequesterName: "Alice",
		VideoId:       videoId,
		Title:         "title " + videoId,
		Duration:      duration,
		Thumbnail:     "https://i.ytimg.com/vi/" + videoId + "/hqdefault.jpg",
	})
	require.NoError(t, err)
	return song
}

func TestCreateAndJoinRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)

	snap, err := svc.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "user-2", UserName: "Bob"})
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)

	// Joining again is a no-op.
	snap, err = svc.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "user-2", UserName: "Bob"})
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)

	got, err := svc.GetUserRoom(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, roomId, got.RoomId)

	isMember, err := svc.IsMember(ctx, roomId, "user-2")
	require.NoError(t, err)
	assert.True(t, isMember)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{RoomId: "ZZZZZZ", UserId: "user-3", UserName: "Eve"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)

	require.NoError(t, svc.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "user-1"}))

	_, err := svc.GetRoom(ctx, roomId)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = svc.GetUserRoom(ctx, "user-1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	closing := sender.ofType(EventRoomClosing)
	require.Len(t, closing, 1)
	assert.Equal(t, roomId, closing[0].roomId)
}

func TestAddSongStickyAutoPlay(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)

	// The very first song arrives before anyone has pressed play: it becomes
	// current but stays paused.
	addSong(t, svc, roomId, "vid00000001", 200)
	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "vid00000001", snap.CurrentSong.VideoId)
	assert.False(t, snap.Playback.IsPlaying)

	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	// Skipping with an empty queue drains the room back to no current song.
	current, err := svc.SkipToNext(ctx, roomId)
	require.NoError(t, err)
	assert.Nil(t, current)

	// After the room has played once, a new head starts playing on its own.
	addSong(t, svc, roomId, "vid00000002", 200)
	snap, err = svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "vid00000002", snap.CurrentSong.VideoId)
	assert.True(t, snap.Playback.IsPlaying)

	assert.NotEmpty(t, sender.ofType(EventSongAdded))
	assert.NotEmpty(t, sender.ofType(EventSongChanged))
}

func TestAddSongLengthLimit(t *testing.T) {
	svc, _, _ := newTestService(t)

	roomId := createRoom(t, svc)

	_, err := svc.AddSong(context.Background(), &AddSongParams{
		RoomId:   roomId,
		VideoId:  "vid00000001",
		Title:    "ten hours of rain",
		Duration: 36000,
	})
	assert.ErrorIs(t, err, ErrSongTooLong)
}

func TestAddSongPreloadsUpcoming(t *testing.T) {
	svc, _, audioCache := newTestService(t)

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 200)
	addSong(t, svc, roomId, "vid00000002", 200)

	audioCache.mu.Lock()
	defer audioCache.mu.Unlock()
	require.NotEmpty(t, audioCache.preloaded)
	assert.Equal(t, []string{"vid00000001", "vid00000002"}, audioCache.preloaded[len(audioCache.preloaded)-1])
}

func TestSkipToNextAdvancesAndPlays(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 200)
	second := addSong(t, svc, roomId, "vid00000002", 200)
	assert.Equal(t, 0, second.Position)

	current, err := svc.SkipToNext(ctx, roomId)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "vid00000002", current.VideoId)

	// A skip is a play gesture even in a room that never played.
	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	assert.True(t, snap.Playback.IsPlaying)
	assert.InDelta(t, 0, snap.Playback.CurrentTime, 0.5)
	assert.Empty(t, snap.Queue)
}

func TestRemoveSong(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 200)
	queued1 := addSong(t, svc, roomId, "vid00000002", 200)
	queued2 := addSong(t, svc, roomId, "vid00000003", 200)

	require.NoError(t, svc.RemoveSong(ctx, &RemoveSongParams{RoomId: roomId, SongId: queued1.Id}))

	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, queued2.Id, snap.Queue[0].Id)
	assert.Equal(t, 0, snap.Queue[0].Position)

	err = svc.RemoveSong(ctx, &RemoveSongParams{RoomId: roomId, SongId: "nope"})
	assert.ErrorIs(t, err, ErrSongNotFound)

	removed := sender.ofType(EventSongRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, queued1.Id, removed[0].data["song_id"])
}

func TestReorderQueue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 200)
	a := addSong(t, svc, roomId, "vid00000002", 200)
	b := addSong(t, svc, roomId, "vid00000003", 200)
	c := addSong(t, svc, roomId, "vid00000004", 200)

	require.NoError(t, svc.ReorderQueue(ctx, &ReorderQueueParams{
		RoomId:  roomId,
		SongIds: []string{c.Id, a.Id, b.Id},
	}))

	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, snap.Queue, 3)
	assert.Equal(t, []string{c.Id, a.Id, b.Id}, []string{snap.Queue[0].Id, snap.Queue[1].Id, snap.Queue[2].Id})
	for i, song := range snap.Queue {
		assert.Equal(t, i, song.Position)
	}
}

func TestReorderQueueRejectsBadPermutations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 200)
	a := addSong(t, svc, roomId, "vid00000002", 200)
	b := addSong(t, svc, roomId, "vid00000003", 200)

	cases := map[string][]string{
		"missing id":   {a.Id},
		"unknown id":   {a.Id, "nope"},
		"duplicate id": {a.Id, a.Id},
		"extra id":     {a.Id, b.Id, "extra"},
	}
	for name, ids := range cases {
		err := svc.ReorderQueue(ctx, &ReorderQueueParams{RoomId: roomId, SongIds: ids})
		assert.ErrorIs(t, err, ErrInvalidOrder, name)

		snap, err := svc.GetRoom(ctx, roomId)
		require.NoError(t, err)
		require.Len(t, snap.Queue, 2, name)
		assert.Equal(t, a.Id, snap.Queue[0].Id, name)
		assert.Equal(t, b.Id, snap.Queue[1].Id, name)
	}
}

func TestDropUnplayable(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000bad", 200)
	addSong(t, svc, roomId, "vid00000bad", 200)
	addSong(t, svc, roomId, "vid0000good", 200)

	require.NoError(t, svc.DropUnplayable(ctx, roomId, "vid00000bad"))

	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "vid0000good", snap.CurrentSong.VideoId)
	assert.Empty(t, snap.Queue)

	assert.Len(t, sender.ofType(EventSongRemoved), 1)
}

func TestDerivedCurrentTime(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 100)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	svc.now = func() time.Time { return base.Add(30 * time.Second) }
	got, err := svc.CurrentTime(ctx, roomId)
	require.NoError(t, err)
	assert.InDelta(t, 30, got, 0.001)

	// The derived position never runs past the song duration.
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	got, err = svc.CurrentTime(ctx, roomId)
	require.NoError(t, err)
	assert.InDelta(t, 100, got, 0.001)
}

func TestPauseWithoutTimeKeepsLastCheckpoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 100)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	// Pausing without a position does not checkpoint the derived time; the
	// clock reads back from the last explicit checkpoint.
	svc.now = func() time.Time { return base.Add(40 * time.Second) }
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: false}))

	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	got, err := svc.CurrentTime(ctx, roomId)
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 0.001)
}

func TestPauseWithExplicitTimeCheckpoints(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 100)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	svc.now = func() time.Time { return base.Add(40 * time.Second) }
	position := 40.0
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: false, CurrentTime: &position}))

	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	got, err := svc.CurrentTime(ctx, roomId)
	require.NoError(t, err)
	assert.InDelta(t, 40, got, 0.001)
}

func TestSeekValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)

	err := svc.Seek(ctx, &SeekParams{RoomId: roomId, Position: 10})
	assert.ErrorIs(t, err, ErrNoCurrentSong)

	addSong(t, svc, roomId, "vid00000001", 100)

	err = svc.Seek(ctx, &SeekParams{RoomId: roomId, Position: -1})
	assert.ErrorIs(t, err, ErrSeekOutOfRange)
	err = svc.Seek(ctx, &SeekParams{RoomId: roomId, Position: 101})
	assert.ErrorIs(t, err, ErrSeekOutOfRange)

	require.NoError(t, svc.Seek(ctx, &SeekParams{RoomId: roomId, Position: 42}))
	got, err := svc.CurrentTime(ctx, roomId)
	require.NoError(t, err)
	assert.InDelta(t, 42, got, 0.001)
}

func TestIdlePauseAfterLastDisconnect(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 600)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	conn := &websocket.Conn{}
	_, err := svc.Subscribe(ctx, &SubscribeParams{Conn: conn, RoomId: roomId, UserId: "user-1"})
	require.NoError(t, err)
	require.NoError(t, svc.Unsubscribe(ctx, conn))

	assert.Eventually(t, func() bool {
		snap, err := svc.GetRoom(ctx, roomId)
		require.NoError(t, err)
		return !snap.Playback.IsPlaying
	}, time.Second, 5*time.Millisecond, "room pauses once the grace period elapses")

	assert.NotEmpty(t, sender.ofType(EventPlaybackPaused))
}

func TestResubscribeCancelsIdlePause(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 600)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	conn := &websocket.Conn{}
	_, err := svc.Subscribe(ctx, &SubscribeParams{Conn: conn, RoomId: roomId, UserId: "user-1"})
	require.NoError(t, err)
	require.NoError(t, svc.Unsubscribe(ctx, conn))

	// Reconnect inside the grace period.
	conn2 := &websocket.Conn{}
	_, err = svc.Subscribe(ctx, &SubscribeParams{Conn: conn2, RoomId: roomId, UserId: "user-1"})
	require.NoError(t, err)

	time.Sleep(4 * svc.cfg.PauseGracePeriod)

	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	assert.True(t, snap.Playback.IsPlaying, "pending pause was cancelled by the reconnect")
}

func TestAutoAdvanceSkipsFinishedSong(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	roomId := createRoom(t, svc)
	addSong(t, svc, roomId, "vid00000001", 100)
	next := addSong(t, svc, roomId, "vid00000002", 100)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: roomId, IsPlaying: true}))

	conn := &websocket.Conn{}
	_, err := svc.Subscribe(ctx, &SubscribeParams{Conn: conn, RoomId: roomId, UserId: "user-1"})
	require.NoError(t, err)

	// Not finished yet: a tick only reports progress.
	svc.now = func() time.Time { return base.Add(50 * time.Second) }
	svc.advanceOnce(ctx)
	snap, err := svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, "vid00000001", snap.CurrentSong.VideoId)
	assert.NotEmpty(t, sender.ofType(EventPlaybackProgress))

	// Past the duration: the driver advances to the next song.
	svc.now = func() time.Time { return base.Add(101 * time.Second) }
	svc.advanceOnce(ctx)
	snap, err = svc.GetRoom(ctx, roomId)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, next.Id, snap.CurrentSong.Id)
	assert.True(t, snap.Playback.IsPlaying)
	assert.Zero(t, snap.Playback.CurrentTime)

	changed := sender.ofType(EventSongChanged)
	require.NotEmpty(t, changed)
}

func TestReaperClosesInactiveRooms(t *testing.T) {
	svc, sender, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	idle := createRoom(t, svc)

	snap, err := svc.CreateRoom(ctx, &CreateRoomParams{UserId: "user-2", UserName: "Bob"})
	require.NoError(t, err)
	busy := snap.RoomId
	addSong(t, svc, busy, "vid00000001", 600)
	require.NoError(t, svc.UpdatePlayback(ctx, &UpdatePlaybackParams{RoomId: busy, IsPlaying: true}))

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	svc.reapOnce(ctx)

	_, err = svc.GetRoom(ctx, idle)
	assert.ErrorIs(t, err, ErrRoomNotFound, "idle room reaped")
	_, err = svc.GetRoom(ctx, busy)
	assert.NoError(t, err, "playing room survives even with no subscribers")

	closing := sender.ofType(EventRoomClosing)
	require.Len(t, closing, 1)
	assert.Equal(t, idle, closing[0].roomId)
}
