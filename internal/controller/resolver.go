package controller

import (
	"context"
	"errors"
	"fmt"

	metadata "github.com/HappyGroupHub/CarTunes/internal/repository/metadata/redis"
	"github.com/HappyGroupHub/CarTunes/pkg/ytmedia"
)

// resolveTrack looks the video up in the shared metadata cache before hitting
// the resolver. Cache failures are logged and ignored; the resolver is the
// source of truth.
func (c controller) resolveTrack(ctx context.Context, videoId string) (*ytmedia.TrackData, error) {
	if c.metadataCache != nil {
		track, err := c.metadataCache.GetTrack(ctx, videoId)
		if err == nil {
			return &ytmedia.TrackData{
				VideoId:   track.VideoId,
				Title:     track.Title,
				Channel:   track.Channel,
				Duration:  track.Duration,
				Thumbnail: track.Thumbnail,
			}, nil
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			c.logger.DebugContext(ctx, "resolveTrack", "metadata cache err", err)
		}
	}

	track, err := c.resolver.Resolve(ctx, videoId)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve track: %w", err)
	}

	if c.metadataCache != nil {
		if err := c.metadataCache.SetTrack(ctx, metadata.Track{
			VideoId:   track.VideoId,
			Title:     track.Title,
			Channel:   track.Channel,
			Duration:  track.Duration,
			Thumbnail: track.Thumbnail,
		}); err != nil {
			c.logger.DebugContext(ctx, "resolveTrack", "metadata cache err", err)
		}
	}

	return track, nil
}
