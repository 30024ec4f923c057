package room

// Event types delivered to room subscribers.
const (
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"

	EventSongAdded      = "song_added"
	EventSongRemoved    = "song_removed"
	EventQueueReordered = "queue_reordered"

	EventPlaybackStarted  = "playback_started"
	EventPlaybackPaused   = "playback_paused"
	EventSongChanged      = "song_changed"
	EventPlaybackProgress = "playback_progress"
	EventPlaybackSeeked   = "playback_seeked"

	EventRoomClosing = "room_closing"
	EventRoomState   = "room_state"

	EventError = "error"
	EventPong  = "pong"
)
