// Package cache owns the local audio file cache: download deduplication,
// TTL and byte-budget eviction, and best-effort preloading of upcoming tracks.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/HappyGroupHub/CarTunes/internal/metrics"
)

// ErrUnavailable reports that another caller's download of the same video
// finished without producing a cached file.
var ErrUnavailable = errors.New("audio unavailable")

// Fetcher performs the actual blocking download of one video id into destDir
// and returns the path of the produced file.
type Fetcher interface {
	Fetch(ctx context.Context, videoId, destDir string) (string, error)
}

type entry struct {
	path       string
	lastAccess time.Time
	size       int64
}

type Config struct {
	// Dir is the cache directory. Empty means a fresh temp directory.
	Dir          string
	MaxBytes     int64
	TTL          time.Duration
	PollInterval time.Duration
}

type Manager struct {
	dir          string
	maxBytes     int64
	ttl          time.Duration
	pollInterval time.Duration

	fetcher Fetcher
	logger  *slog.Logger

	mu          sync.Mutex
	entries     map[string]*entry
	downloading map[string]struct{}

	now func() time.Time
}

func NewManager(fetcher Fetcher, cfg *Config, logger *slog.Logger) (*Manager, error) {
	dir := cfg.Dir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "cartunes_audio_")
		if err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	logger.Info("audio cache initialized", "dir", dir)

	return &Manager{
		dir:          dir,
		maxBytes:     cfg.MaxBytes,
		ttl:          cfg.TTL,
		pollInterval: pollInterval,
		fetcher:      fetcher,
		logger:       logger,
		entries:      make(map[string]*entry),
		downloading:  make(map[string]struct{}),
		now:          time.Now,
	}, nil
}

// GetPath returns the cached file path if the backing file still exists and
// the entry has been accessed within the TTL. Expired or missing entries are
// evicted here, on read; this is the only read-side expiry point.
func (m *Manager) GetPath(videoId string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getPathLocked(videoId)
}

func (m *Manager) getPathLocked(videoId string) (string, bool) {
	e, ok := m.entries[videoId]
	if !ok {
		return "", false
	}

	if _, err := os.Stat(e.path); err == nil && m.now().Sub(e.lastAccess) < m.ttl {
		return e.path, true
	}

	m.removeEntryLocked(videoId)
	return "", false
}

func (m *Manager) IsDownloading(videoId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.downloading[videoId]
	return ok
}

// RefreshAccess bumps the last-access time so tracks that keep getting
// re-requested are not evicted while rarely used ones age out.
func (m *Manager) RefreshAccess(videoId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[videoId]; ok {
		e.lastAccess = m.now()
	}
}

// Download returns the local path for a video, downloading it if needed.
// Concurrent calls for the same id result in exactly one fetch: the in-flight
// set is claimed under the lock, and every other caller polls until the
// marker clears, then returns whatever the winner produced — a waiter never
// starts a fetch of its own, so a failed download costs one attempt, not one
// per caller.
func (m *Manager) Download(ctx context.Context, videoId string) (string, error) {
	waited := false
	for {
		m.mu.Lock()
		if path, ok := m.getPathLocked(videoId); ok {
			m.entries[videoId].lastAccess = m.now()
			m.mu.Unlock()
			return path, nil
		}
		if _, inflight := m.downloading[videoId]; !inflight {
			if waited {
				m.mu.Unlock()
				return "", fmt.Errorf("failed to download audio for %s: %w", videoId, ErrUnavailable)
			}
			m.downloading[videoId] = struct{}{}
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()
		waited = true

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}

	// The in-flight marker must clear no matter how the fetch ends.
	defer func() {
		m.mu.Lock()
		delete(m.downloading, videoId)
		m.mu.Unlock()
	}()

	m.cleanup()

	metrics.DownloadsTotal.Inc()
	path, err := m.fetcher.Fetch(ctx, videoId, m.dir)
	if err != nil {
		metrics.DownloadFailures.Inc()
		m.logger.Error("failed to download audio", "videoId", videoId, "error", err)
		return "", fmt.Errorf("failed to download audio for %s: %w", videoId, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		metrics.DownloadFailures.Inc()
		return "", fmt.Errorf("failed to stat downloaded file: %w", err)
	}

	m.mu.Lock()
	m.entries[videoId] = &entry{
		path:       path,
		lastAccess: m.now(),
		size:       info.Size(),
	}
	m.updateMetricsLocked()
	m.mu.Unlock()

	m.logger.Info("audio downloaded", "videoId", videoId, "path", path, "bytes", info.Size())
	return path, nil
}

// Preload fires background downloads for the first limit ids that are neither
// cached nor already in flight. Failures are swallowed; this is best-effort.
func (m *Manager) Preload(ctx context.Context, videoIds []string, limit int) {
	started := 0
	for _, videoId := range videoIds {
		if started >= limit {
			break
		}
		if _, ok := m.GetPath(videoId); ok {
			continue
		}
		if m.IsDownloading(videoId) {
			continue
		}
		started++

		go func(id string) {
			if _, err := m.Download(ctx, id); err != nil {
				m.logger.Debug("preload failed", "videoId", id, "error", err)
			}
		}(videoId)
	}
}

// cleanup enforces the TTL and then the byte budget, oldest last-access
// first. Runs before every fresh download so the cache never grows past the
// budget by more than one file.
func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for videoId, e := range m.entries {
		if now.Sub(e.lastAccess) > m.ttl {
			m.removeEntryLocked(videoId)
		}
	}

	for m.totalBytesLocked() > m.maxBytes {
		oldestId := ""
		var oldest time.Time
		for videoId, e := range m.entries {
			if oldestId == "" || e.lastAccess.Before(oldest) {
				oldestId = videoId
				oldest = e.lastAccess
			}
		}
		if oldestId == "" {
			break
		}
		m.removeEntryLocked(oldestId)
	}

	m.updateMetricsLocked()
}

func (m *Manager) totalBytesLocked() int64 {
	var total int64
	for _, e := range m.entries {
		total += e.size
	}
	return total
}

func (m *Manager) removeEntryLocked(videoId string) {
	e, ok := m.entries[videoId]
	if !ok {
		return
	}

	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Error("failed to remove cached file", "path", e.path, "error", err)
	}

	delete(m.entries, videoId)
	m.updateMetricsLocked()
}

func (m *Manager) updateMetricsLocked() {
	metrics.CacheBytes.Set(float64(m.totalBytesLocked()))
	metrics.CacheEntries.Set(float64(len(m.entries)))
}

// Teardown removes the entire cache directory. Called once at shutdown.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.RemoveAll(m.dir); err != nil {
		m.logger.Error("failed to remove cache dir", "dir", m.dir, "error", err)
		return
	}

	m.entries = make(map[string]*entry)
	m.updateMetricsLocked()
	m.logger.Info("audio cache removed", "dir", m.dir)
}
