package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HappyGroupHub/CarTunes/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8000,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	roomCodeLength = configVar[int]{
		envKey:       "ROOM_CODE_LENGTH",
		flagKey:      "room-code-length",
		defaultValue: 6,
	}
	numericRoomCodes = configVar[bool]{
		envKey:       "ROOM_NUMERIC_CODES",
		flagKey:      "numeric-room-codes",
		defaultValue: false,
	}
	songLengthLimit = configVar[int]{
		envKey:       "ROOM_SONG_LENGTH_LIMIT",
		flagKey:      "song-length-limit",
		defaultValue: 1800,
	}
	pauseAfterNoConns = configVar[time.Duration]{
		envKey:       "ROOM_PAUSE_AFTER_NO_CONNECTIONS",
		flagKey:      "pause-after-no-connections",
		defaultValue: 30 * time.Second,
	}
	roomCleanupAfter = configVar[time.Duration]{
		envKey:       "ROOM_CLEANUP_AFTER_INACTIVITY",
		flagKey:      "room-cleanup-after-inactivity",
		defaultValue: 30 * time.Minute,
	}
	reapInterval = configVar[time.Duration]{
		envKey:       "ROOM_REAP_INTERVAL",
		flagKey:      "room-reap-interval",
		defaultValue: 5 * time.Minute,
	}
	progressInterval = configVar[time.Duration]{
		envKey:       "ROOM_PROGRESS_INTERVAL",
		flagKey:      "progress-broadcast-interval",
		defaultValue: 5 * time.Second,
	}
	preloadCount = configVar[int]{
		envKey:       "CACHE_PRELOAD_COUNT",
		flagKey:      "cache-preload-count",
		defaultValue: 5,
	}
	cacheDir = configVar[string]{
		envKey:       "CACHE_DIR",
		flagKey:      "cache-dir",
		defaultValue: "",
	}
	cacheMaxBytes = configVar[int64]{
		envKey:       "CACHE_MAX_BYTES",
		flagKey:      "cache-max-bytes",
		defaultValue: 2 << 30,
	}
	cacheTTL = configVar[time.Duration]{
		envKey:       "CACHE_TTL",
		flagKey:      "cache-ttl",
		defaultValue: time.Hour,
	}
	ytdlpPath = configVar[string]{
		envKey:       "YTDLP_PATH",
		flagKey:      "ytdlp-path",
		defaultValue: "yt-dlp",
	}
	resolverLang = configVar[string]{
		envKey:       "RESOLVER_LANG",
		flagKey:      "resolver-lang",
		defaultValue: "en",
	}
	resolverRegion = configVar[string]{
		envKey:       "RESOLVER_REGION",
		flagKey:      "resolver-region",
		defaultValue: "US",
	}
	redisEnabled = configVar[bool]{
		envKey:       "REDIS_ENABLED",
		flagKey:      "redis-enabled",
		defaultValue: false,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	metadataTTL = configVar[time.Duration]{
		envKey:       "METADATA_TTL",
		flagKey:      "metadata-ttl",
		defaultValue: 24 * time.Hour,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(roomCodeLength.flagKey, roomCodeLength.defaultValue, "Length of generated room codes")
	pflag.Bool(numericRoomCodes.flagKey, numericRoomCodes.defaultValue, "Generate digits-only room codes")
	pflag.Int(songLengthLimit.flagKey, songLengthLimit.defaultValue, "Maximum song duration in seconds, 0 for unlimited")
	pflag.Duration(pauseAfterNoConns.flagKey, pauseAfterNoConns.defaultValue, "Grace period before pausing a room with no connections")
	pflag.Duration(roomCleanupAfter.flagKey, roomCleanupAfter.defaultValue, "Inactivity threshold before a room is removed")
	pflag.Duration(reapInterval.flagKey, reapInterval.defaultValue, "How often the inactivity sweep runs")
	pflag.Duration(progressInterval.flagKey, progressInterval.defaultValue, "Minimum interval between progress broadcasts")
	pflag.Int(preloadCount.flagKey, preloadCount.defaultValue, "Upcoming songs to preload per room")
	pflag.String(cacheDir.flagKey, cacheDir.defaultValue, "Audio cache directory, empty for a temp dir")
	pflag.Int64(cacheMaxBytes.flagKey, cacheMaxBytes.defaultValue, "Audio cache size budget in bytes")
	pflag.Duration(cacheTTL.flagKey, cacheTTL.defaultValue, "Audio cache entry lifetime since last access")
	pflag.String(ytdlpPath.flagKey, ytdlpPath.defaultValue, "Path to the yt-dlp binary")
	pflag.String(resolverLang.flagKey, resolverLang.defaultValue, "Resolver interface language")
	pflag.String(resolverRegion.flagKey, resolverRegion.defaultValue, "Resolver region code")
	pflag.Bool(redisEnabled.flagKey, redisEnabled.defaultValue, "Enable the redis metadata cache")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Duration(metadataTTL.flagKey, metadataTTL.defaultValue, "Cached track metadata lifetime")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(roomCodeLength.flagKey, roomCodeLength.envKey)
	viper.BindEnv(numericRoomCodes.flagKey, numericRoomCodes.envKey)
	viper.BindEnv(songLengthLimit.flagKey, songLengthLimit.envKey)
	viper.BindEnv(pauseAfterNoConns.flagKey, pauseAfterNoConns.envKey)
	viper.BindEnv(roomCleanupAfter.flagKey, roomCleanupAfter.envKey)
	viper.BindEnv(reapInterval.flagKey, reapInterval.envKey)
	viper.BindEnv(progressInterval.flagKey, progressInterval.envKey)
	viper.BindEnv(preloadCount.flagKey, preloadCount.envKey)
	viper.BindEnv(cacheDir.flagKey, cacheDir.envKey)
	viper.BindEnv(cacheMaxBytes.flagKey, cacheMaxBytes.envKey)
	viper.BindEnv(cacheTTL.flagKey, cacheTTL.envKey)
	viper.BindEnv(ytdlpPath.flagKey, ytdlpPath.envKey)
	viper.BindEnv(resolverLang.flagKey, resolverLang.envKey)
	viper.BindEnv(resolverRegion.flagKey, resolverRegion.envKey)
	viper.BindEnv(redisEnabled.flagKey, redisEnabled.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(metadataTTL.flagKey, metadataTTL.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(roomCodeLength.flagKey, roomCodeLength.defaultValue)
	viper.SetDefault(numericRoomCodes.flagKey, numericRoomCodes.defaultValue)
	viper.SetDefault(songLengthLimit.flagKey, songLengthLimit.defaultValue)
	viper.SetDefault(pauseAfterNoConns.flagKey, pauseAfterNoConns.defaultValue)
	viper.SetDefault(roomCleanupAfter.flagKey, roomCleanupAfter.defaultValue)
	viper.SetDefault(reapInterval.flagKey, reapInterval.defaultValue)
	viper.SetDefault(progressInterval.flagKey, progressInterval.defaultValue)
	viper.SetDefault(preloadCount.flagKey, preloadCount.defaultValue)
	viper.SetDefault(cacheDir.flagKey, cacheDir.defaultValue)
	viper.SetDefault(cacheMaxBytes.flagKey, cacheMaxBytes.defaultValue)
	viper.SetDefault(cacheTTL.flagKey, cacheTTL.defaultValue)
	viper.SetDefault(ytdlpPath.flagKey, ytdlpPath.defaultValue)
	viper.SetDefault(resolverLang.flagKey, resolverLang.defaultValue)
	viper.SetDefault(resolverRegion.flagKey, resolverRegion.defaultValue)
	viper.SetDefault(redisEnabled.flagKey, redisEnabled.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(metadataTTL.flagKey, metadataTTL.defaultValue)

	config := &app.AppConfig{
		Host:                    viper.GetString(host.flagKey),
		Port:                    viper.GetInt(port.flagKey),
		LogLevel:                viper.GetString(logLevel.flagKey),
		RoomCodeLength:          viper.GetInt(roomCodeLength.flagKey),
		NumericRoomCodes:        viper.GetBool(numericRoomCodes.flagKey),
		SongLengthLimit:         viper.GetInt(songLengthLimit.flagKey),
		PauseAfterNoConnections: viper.GetDuration(pauseAfterNoConns.flagKey),
		RoomCleanupAfter:        viper.GetDuration(roomCleanupAfter.flagKey),
		ReapInterval:            viper.GetDuration(reapInterval.flagKey),
		ProgressInterval:        viper.GetDuration(progressInterval.flagKey),
		PreloadCount:            viper.GetInt(preloadCount.flagKey),
		CacheDir:                viper.GetString(cacheDir.flagKey),
		CacheMaxBytes:           viper.GetInt64(cacheMaxBytes.flagKey),
		CacheTTL:                viper.GetDuration(cacheTTL.flagKey),
		YtdlpPath:               viper.GetString(ytdlpPath.flagKey),
		ResolverLang:            viper.GetString(resolverLang.flagKey),
		ResolverRegion:          viper.GetString(resolverRegion.flagKey),
		RedisEnabled:            viper.GetBool(redisEnabled.flagKey),
		RedisHost:               viper.GetString(redisHost.flagKey),
		RedisPort:               viper.GetInt(redisPort.flagKey),
		RedisPassword:           viper.GetString(redisPassword.flagKey),
		MetadataTTL:             viper.GetDuration(metadataTTL.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
