package ytmedia

import (
	"context"
	"fmt"
)

// Search queries InnerTube search and returns video candidates in ranking
// order. Shorts and live streams are filtered out, matching what a playback
// queue can actually consume.
func (c *Client) Search(ctx context.Context, query string) ([]TrackData, error) {
	payload := map[string]any{
		"context": c.newContext("WEB", "2.20240401.05.00"),
		"query":   query,
		"params":  searchParams,
	}

	var raw map[string]any
	if err := c.post(ctx, searchEndpoint, payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var results []TrackData
	collectVideoRenderers(raw, &results)

	return results, nil
}

// collectVideoRenderers walks the deeply nested search response looking for
// videoRenderer objects. The response layout shifts between experiments, so
// structural walking beats a fixed struct decode here.
func collectVideoRenderers(node any, out *[]TrackData) {
	switch v := node.(type) {
	case map[string]any:
		if vr, ok := v["videoRenderer"].(map[string]any); ok {
			if track, ok := parseVideoRenderer(vr); ok {
				*out = append(*out, track)
			}
			return
		}
		for _, child := range v {
			collectVideoRenderers(child, out)
		}
	case []any:
		for _, child := range v {
			collectVideoRenderers(child, out)
		}
	}
}

func parseVideoRenderer(vr map[string]any) (TrackData, bool) {
	videoId, _ := vr["videoId"].(string)
	if videoId == "" {
		return TrackData{}, false
	}

	// No lengthText means live content.
	lengthText := runText(vr["lengthText"])
	duration := parseDurationString(lengthText)
	if duration == 0 {
		return TrackData{}, false
	}

	track := TrackData{
		VideoId:   videoId,
		Title:     runText(vr["title"]),
		Channel:   runText(vr["ownerText"]),
		Duration:  duration,
		Thumbnail: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoId),
	}

	return track, true
}

// runText extracts the text of an InnerTube text object, which is either
// {"simpleText": "..."} or {"runs": [{"text": "..."}]}.
func runText(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}

	if s, ok := m["simpleText"].(string); ok {
		return s
	}

	runs, ok := m["runs"].([]any)
	if !ok || len(runs) == 0 {
		return ""
	}

	run, ok := runs[0].(map[string]any)
	if !ok {
		return ""
	}

	s, _ := run["text"].(string)

	return s
}
