package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackRoundTrip(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	repo := NewRepo(rc, time.Hour)

	ctx := context.Background()

	_, err = repo.GetTrack(ctx, "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNotFound)

	track := Track{
		VideoId:   "dQw4w9WgXcQ",
		Title:     "Never Gonna Give You Up",
		Channel:   "Rick Astley",
		Duration:  212,
		Thumbnail: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg",
	}
	require.NoError(t, repo.SetTrack(ctx, track))

	got, err := repo.GetTrack(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, track, got)

	// TTL expiry drops the key.
	s.FastForward(2 * time.Hour)
	_, err = repo.GetTrack(ctx, "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNotFound)
}
