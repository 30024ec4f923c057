// Package ytmedia resolves YouTube track metadata through the InnerTube API,
// with a plain page fetch as fallback when the API refuses a video.
package ytmedia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("media not found")

const (
	playerEndpoint = "https://youtubei.googleapis.com/youtubei/v1/player?prettyPrint=false"
	searchEndpoint = "https://youtubei.googleapis.com/youtubei/v1/search?prettyPrint=false"

	// Videos-only search filter.
	searchParams = "EgIQAfABAQ=="

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// TrackData is the resolved description of a playable track. Duration is zero
// for live or otherwise unbounded streams.
type TrackData struct {
	VideoId   string `json:"video_id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

type Client struct {
	httpClient *http.Client
	hl         string
	gl         string
}

func NewClient(hl, gl string) *Client {
	if hl == "" {
		hl = "en"
	}
	if gl == "" {
		gl = "US"
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		hl:         hl,
		gl:         gl,
	}
}

type innertubeContext struct {
	Client struct {
		ClientName    string `json:"clientName"`
		ClientVersion string `json:"clientVersion"`
		Hl            string `json:"hl"`
		Gl            string `json:"gl"`
	} `json:"client"`
}

func (c *Client) newContext(clientName, clientVersion string) innertubeContext {
	var ic innertubeContext
	ic.Client.ClientName = clientName
	ic.Client.ClientVersion = clientVersion
	ic.Client.Hl = c.hl
	ic.Client.Gl = c.gl

	return ic
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call innertube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("innertube returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode innertube response: %w", err)
	}

	return nil
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoId       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
		Author        string `json:"author"`
		IsLiveContent bool   `json:"isLiveContent"`
		Thumbnail     struct {
			Thumbnails []struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
}

// Resolve fetches title, channel, duration and thumbnail for a video id.
// Returns ErrNotFound when the video does not exist or is not playable.
func (c *Client) Resolve(ctx context.Context, videoId string) (*TrackData, error) {
	payload := map[string]any{
		"context": c.newContext("ANDROID", "19.09.37"),
		"videoId": videoId,
	}

	var resp playerResponse
	if err := c.post(ctx, playerEndpoint, payload, &resp); err != nil {
		// The player endpoint occasionally rejects the ANDROID client; the
		// public watch page still carries the title.
		data, pageErr := c.getFromPage(ctx, videoId)
		if pageErr != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", videoId, err)
		}
		return data, nil
	}

	switch resp.PlayabilityStatus.Status {
	case "OK":
	case "LIVE_STREAM_OFFLINE":
	default:
		return nil, ErrNotFound
	}

	if resp.VideoDetails.VideoId == "" {
		return nil, ErrNotFound
	}

	duration, _ := strconv.Atoi(resp.VideoDetails.LengthSeconds)
	if resp.VideoDetails.IsLiveContent {
		duration = 0
	}

	thumbnail := fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoId)
	if n := len(resp.VideoDetails.Thumbnail.Thumbnails); n > 0 {
		thumbnail = resp.VideoDetails.Thumbnail.Thumbnails[n-1].URL
	}

	return &TrackData{
		VideoId:   resp.VideoDetails.VideoId,
		Title:     resp.VideoDetails.Title,
		Channel:   resp.VideoDetails.Author,
		Duration:  duration,
		Thumbnail: thumbnail,
	}, nil
}
