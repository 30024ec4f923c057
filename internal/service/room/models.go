package room

import "time"

type Member struct {
	UserId   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	JoinedAt time.Time `json:"joined_at"`
}

type Song struct {
	Id            string    `json:"id"`
	VideoId       string    `json:"video_id"`
	Title         string    `json:"title"`
	Channel       *string   `json:"channel"`
	Duration      int       `json:"duration"`
	Thumbnail     string    `json:"thumbnail"`
	RequesterId   string    `json:"requester_id"`
	RequesterName string    `json:"requester_name"`
	AddedAt       time.Time `json:"added_at"`
	Position      int       `json:"position"`
}

// PlaybackState is a checkpoint, not a ticking clock: CurrentTime is the
// position recorded at LastUpdate. The live position is always derived from
// the pair, never stored.
type PlaybackState struct {
	IsPlaying   bool      `json:"is_playing"`
	CurrentTime float64   `json:"current_time"`
	LastUpdate  time.Time `json:"last_update"`
}

// Snapshot is the externally visible copy of a room. The engine never hands
// out references into its own state.
type Snapshot struct {
	RoomId            string        `json:"room_id"`
	CreatedAt         time.Time     `json:"created_at"`
	CreatorId         string        `json:"creator_id"`
	Members           []Member      `json:"members"`
	Queue             []Song        `json:"queue"`
	CurrentSong       *Song         `json:"current_song"`
	Playback          PlaybackState `json:"playback_state"`
	ActiveConnections int           `json:"active_connections"`
}

// roomState is the engine-owned room entity. pauseTimer holds the at-most-one
// live idle-pause schedule for the room; hasEverPlayed is the sticky flag set
// by any explicit play or skip and never cleared.
type roomState struct {
	id             string
	createdAt      time.Time
	creatorId      string
	members        []Member
	queue          []*Song
	currentSong    *Song
	playback       PlaybackState
	lastActivity   time.Time
	hasEverPlayed  bool
	pauseTimer     *time.Timer
	lastProgressAt time.Time
}
