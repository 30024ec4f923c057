// Package redis caches resolved track metadata so repeated adds of the same
// video skip the resolver round trip. This holds derived data only; the
// authoritative room state never leaves the process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("metadata not found")

type Track struct {
	VideoId   string `json:"video_id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

type repo struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRepo(rc *redis.Client, ttl time.Duration) *repo {
	return &repo{rc: rc, ttl: ttl}
}

func (r repo) getTrackKey(videoId string) string {
	return "track:" + videoId
}

func (r repo) GetTrack(ctx context.Context, videoId string) (Track, error) {
	raw, err := r.rc.Get(ctx, r.getTrackKey(videoId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Track{}, ErrNotFound
		}
		return Track{}, fmt.Errorf("failed to get track metadata: %w", err)
	}

	var track Track
	if err := json.Unmarshal(raw, &track); err != nil {
		return Track{}, fmt.Errorf("failed to unmarshal track metadata: %w", err)
	}

	return track, nil
}

func (r repo) SetTrack(ctx context.Context, track Track) error {
	raw, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal track metadata: %w", err)
	}

	if err := r.rc.Set(ctx, r.getTrackKey(track.VideoId), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set track metadata: %w", err)
	}

	return nil
}
