package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YtdlpFetcher shells out to the yt-dlp binary. Downloading and normalizing
// media is a solved external problem; the process boundary is the contract.
type YtdlpFetcher struct {
	binPath string
	logger  *slog.Logger
}

func NewYtdlpFetcher(binPath string, logger *slog.Logger) *YtdlpFetcher {
	if binPath == "" {
		binPath = "yt-dlp"
	}

	return &YtdlpFetcher{binPath: binPath, logger: logger}
}

var audioExtensions = []string{"m4a", "webm", "mp4", "mp3", "ogg"}

func (f *YtdlpFetcher) Fetch(ctx context.Context, videoId, destDir string) (string, error) {
	url := "https://www.youtube.com/watch?v=" + videoId

	cmd := exec.CommandContext(ctx, f.binPath,
		"-f", "bestaudio[ext=m4a]/bestaudio[ext=webm]/bestaudio/best",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"-o", filepath.Join(destDir, videoId+".%(ext)s"),
		url,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	path, err := f.findDownloaded(videoId, destDir)
	if err != nil {
		return "", err
	}

	// Browsers refuse bare mp4 audio more often than the same bytes labeled
	// mp3, so rename when that container shows up.
	if strings.HasSuffix(path, ".mp4") {
		mp3Path := strings.TrimSuffix(path, ".mp4") + ".mp3"
		if err := os.Rename(path, mp3Path); err != nil {
			f.logger.Warn("failed to rename mp4 to mp3, keeping original", "path", path, "error", err)
		} else {
			path = mp3Path
		}
	}

	return path, nil
}

func (f *YtdlpFetcher) findDownloaded(videoId, destDir string) (string, error) {
	for _, ext := range audioExtensions {
		path := filepath.Join(destDir, videoId+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// yt-dlp picked an extension outside the expected set; match by prefix.
	dirEntries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to read cache dir: %w", err)
	}
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), videoId+".") {
			return filepath.Join(destDir, de.Name()), nil
		}
	}

	return "", fmt.Errorf("downloaded file not found for %s", videoId)
}
