package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	metadata "github.com/HappyGroupHub/CarTunes/internal/repository/metadata/redis"
	"github.com/HappyGroupHub/CarTunes/internal/service/room"
	"github.com/HappyGroupHub/CarTunes/pkg/validator"
	"github.com/HappyGroupHub/CarTunes/pkg/ytmedia"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.Snapshot, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.Snapshot, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	GetRoom(ctx context.Context, roomId string) (room.Snapshot, error)
	GetUserRoom(ctx context.Context, userId string) (room.Snapshot, error)
	IsMember(ctx context.Context, roomId, userId string) (bool, error)
	UpdateActivity(ctx context.Context, roomId string) error

	AddSong(context.Context, *room.AddSongParams) (room.Song, error)
	RemoveSong(context.Context, *room.RemoveSongParams) error
	ReorderQueue(context.Context, *room.ReorderQueueParams) error
	SkipToNext(ctx context.Context, roomId string) (*room.Song, error)
	DropUnplayable(ctx context.Context, roomId, videoId string) error

	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) error
	Seek(context.Context, *room.SeekParams) error

	Subscribe(context.Context, *room.SubscribeParams) (room.Snapshot, error)
	Unsubscribe(ctx context.Context, conn *websocket.Conn) error
}

type iResolver interface {
	Resolve(ctx context.Context, videoId string) (*ytmedia.TrackData, error)
	Search(ctx context.Context, query string) ([]ytmedia.TrackData, error)
}

type iAudioCache interface {
	Download(ctx context.Context, videoId string) (string, error)
	GetPath(videoId string) (string, bool)
	IsDownloading(videoId string) bool
}

// iMetadataCache fronts the resolver with a shared metadata cache. May be nil
// when no cache is configured.
type iMetadataCache interface {
	GetTrack(ctx context.Context, videoId string) (metadata.Track, error)
	SetTrack(ctx context.Context, track metadata.Track) error
}

type iSender interface {
	Send(ctx context.Context, conn *websocket.Conn, eventType string, data any) error
}

type controller struct {
	roomService   iRoomService
	resolver      iResolver
	audioCache    iAudioCache
	metadataCache iMetadataCache
	sender        iSender
	upgrader      websocket.Upgrader
	validate      *validator.Validator
	logger        *slog.Logger
}

func NewController(roomService iRoomService, resolver iResolver, audioCache iAudioCache, metadataCache iMetadataCache, sender iSender, logger *slog.Logger) *controller {
	return &controller{
		roomService:   roomService,
		resolver:      resolver,
		audioCache:    audioCache,
		metadataCache: metadataCache,
		sender:        sender,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
