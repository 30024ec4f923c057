package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HappyGroupHub/CarTunes/internal/cache"
	"github.com/HappyGroupHub/CarTunes/internal/controller"
	"github.com/HappyGroupHub/CarTunes/internal/repository/connection/inmemory"
	metadata "github.com/HappyGroupHub/CarTunes/internal/repository/metadata/redis"
	"github.com/HappyGroupHub/CarTunes/internal/repository/wssender"
	"github.com/HappyGroupHub/CarTunes/internal/service/room"
	"github.com/HappyGroupHub/CarTunes/pkg/ctxlogger"
	"github.com/HappyGroupHub/CarTunes/pkg/randstr"
	"github.com/HappyGroupHub/CarTunes/pkg/redisclient"
	"github.com/HappyGroupHub/CarTunes/pkg/ytmedia"
)

type AppConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`

	RoomCodeLength          int           `json:"room_code_length"`
	NumericRoomCodes        bool          `json:"numeric_room_codes"`
	SongLengthLimit         int           `json:"song_length_limit"`
	PauseAfterNoConnections time.Duration `json:"pause_after_no_connections"`
	RoomCleanupAfter        time.Duration `json:"room_cleanup_after"`
	ReapInterval            time.Duration `json:"reap_interval"`
	ProgressInterval        time.Duration `json:"progress_interval"`
	PreloadCount            int           `json:"preload_count"`

	CacheDir      string        `json:"cache_dir"`
	CacheMaxBytes int64         `json:"cache_max_bytes"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	YtdlpPath     string        `json:"ytdlp_path"`

	ResolverLang   string `json:"resolver_lang"`
	ResolverRegion string `json:"resolver_region"`

	RedisEnabled  bool          `json:"redis_enabled"`
	RedisHost     string        `json:"redis_host"`
	RedisPort     int           `json:"redis_port"`
	RedisPassword string        `json:"-"`
	MetadataTTL   time.Duration `json:"metadata_ttl"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.RoomCodeLength < 4 {
		return fmt.Errorf("room code length must be at least 4")
	}
	if cfg.CacheMaxBytes < 1 {
		return fmt.Errorf("cache max bytes must be greater than 0")
	}
	if cfg.PreloadCount < 1 {
		return fmt.Errorf("preload count must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	connectionRepo := inmemory.NewRepo()
	sender := wssender.NewRepo(connectionRepo, logger)

	fetcher := cache.NewYtdlpFetcher(cfg.YtdlpPath, logger)
	audioCache, err := cache.NewManager(fetcher, &cache.Config{
		Dir:      cfg.CacheDir,
		MaxBytes: cfg.CacheMaxBytes,
		TTL:      cfg.CacheTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create audio cache: %w", err)
	}
	defer audioCache.Teardown()

	charset := room.DefaultRoomCodeCharset
	if cfg.NumericRoomCodes {
		charset = room.NumericRoomCodeCharset
	}

	roomService := room.NewService(
		connectionRepo,
		sender,
		audioCache,
		randstr.New([]byte(charset)),
		logger,
		room.Config{
			RoomCodeLength:      cfg.RoomCodeLength,
			SongLengthLimit:     cfg.SongLengthLimit,
			PauseGracePeriod:    cfg.PauseAfterNoConnections,
			InactivityThreshold: cfg.RoomCleanupAfter,
			ProgressInterval:    cfg.ProgressInterval,
			PreloadCount:        cfg.PreloadCount,
		},
	)

	resolver := ytmedia.NewClient(cfg.ResolverLang, cfg.ResolverRegion)

	var ctrl interface{ GetMux() http.Handler }
	if cfg.RedisEnabled {
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		ctrl = controller.NewController(roomService, resolver, audioCache, metadata.NewRepo(rc, cfg.MetadataTTL), sender, logger)
	} else {
		ctrl = controller.NewController(roomService, resolver, audioCache, nil, sender, logger)
	}

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	roomService.StartAutoAdvance(serverCtx)
	roomService.StartReaper(serverCtx, cfg.ReapInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
