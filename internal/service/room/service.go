// Package room implements the authoritative room engine: membership, the
// playback queue state machine, the derived playback clock and the idle
// lifecycle timers. All room state lives behind a single mutex; nothing
// blocking runs under it and events are delivered only after it is released.
package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HappyGroupHub/CarTunes/internal/repository/connection"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrSongNotFound   = errors.New("song not found")
	ErrNoCurrentSong  = errors.New("no current song")
	ErrSeekOutOfRange = errors.New("seek position out of range")
	ErrInvalidOrder   = errors.New("invalid queue order")
	ErrSongTooLong    = errors.New("song exceeds length limit")
	ErrNotRoomMember  = errors.New("user is not a room member")
	ErrCodeSpaceFull  = errors.New("failed to allocate a room code")
)

const (
	// Uppercase letters and digits without the lookalikes I, O, 0 and 1.
	DefaultRoomCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	NumericRoomCodeCharset = "0123456789"

	codeAllocAttempts = 100
)

type iConnRegistry interface {
	Add(conn *websocket.Conn, roomId, userId string) error
	Remove(conn *websocket.Conn) (connection.Info, error)
	Info(conn *websocket.Conn) (connection.Info, error)
	RoomCount(roomId string) int
	RoomsWithConns() []string
}

type iSender interface {
	Broadcast(ctx context.Context, roomId, eventType string, data any)
	Send(ctx context.Context, conn *websocket.Conn, eventType string, data any) error
}

type iAudioCache interface {
	Preload(ctx context.Context, videoIds []string, limit int)
	RefreshAccess(videoId string)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	RoomCodeLength      int
	SongLengthLimit     int
	PauseGracePeriod    time.Duration
	InactivityThreshold time.Duration
	ProgressInterval    time.Duration
	PreloadCount        int
}

type service struct {
	connRegistry iConnRegistry
	sender       iSender
	audioCache   iAudioCache
	generator    iGenerator
	logger       *slog.Logger
	cfg          Config

	rooms     map[string]*roomState
	userRooms map[string]string

	mu  sync.Mutex
	now func() time.Time
}

func NewService(connRegistry iConnRegistry, sender iSender, audioCache iAudioCache, generator iGenerator, logger *slog.Logger, cfg Config) *service {
	return &service{
		connRegistry: connRegistry,
		sender:       sender,
		audioCache:   audioCache,
		generator:    generator,
		logger:       logger,
		cfg:          cfg,
		rooms:        make(map[string]*roomState),
		userRooms:    make(map[string]string),
		now:          time.Now,
	}
}
