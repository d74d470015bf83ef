package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownResourceKind   = errors.New("unknown cooldown resource")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// TokenEnv is the environment variable that overrides the configured bot token.
const TokenEnv = "DISCORD_TOKEN"

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared by the bot and the db tool.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Retry      Retry      `koanf:"retry"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Telemetry  Telemetry  `koanf:"telemetry"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version  int      `koanf:"version"`
	Discord  Discord  `koanf:"discord"`
	Core     Core     `koanf:"core"`
	Dispatch Dispatch `koanf:"dispatch"`
	// Cron spec of the idle cooldown window sweep.
	SweepSchedule string `koanf:"sweep_schedule"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// Enable pprof and metrics endpoints.
	EnablePprof bool `koanf:"enable_pprof"`
	// Debug server port.
	PprofPort int `koanf:"pprof_port"`
}

// Retry contains database retry configuration.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"db_name"`
	// Require TLS on the connection.
	TLS bool `koanf:"tls"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
	// Queries slower than this many milliseconds are logged as warnings.
	SlowQueryMS int `koanf:"slow_query_ms"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Telemetry contains OpenTelemetry export configuration.
type Telemetry struct {
	// Uptrace DSN; tracing is disabled when empty.
	DSN         string `koanf:"dsn"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guild that receives premium entitlement updates for testing, 0 for none.
	DevGuildID uint64 `koanf:"dev_guild_id"`
}

// Core configures the starboard engine.
type Core struct {
	Filter FilterLimits `koanf:"filter"`
	// Cooldowns keyed by resource name, periods in seconds.
	Cooldowns     map[string]Cooldown `koanf:"cooldowns"`
	FreeQuotas    Quotas              `koanf:"free_quotas"`
	PremiumQuotas Quotas              `koanf:"premium_quotas"`
	// Repost removed entries when they cross the threshold again.
	ResurrectRemoved bool `koanf:"resurrect_removed"`
	// Messages older than this many minutes have their edits rate limited.
	OldMessageAge int `koanf:"old_message_age"`
	// Cooldown windows unused for this many minutes are reclaimed by the sweep.
	IdleAfter int `koanf:"idle_after"`
}

// FilterLimits bounds the size of filter trees.
type FilterLimits struct {
	MaxDepth       int `koanf:"max_depth"`
	MaxWidth       int `koanf:"max_width"`
	MaxNodes       int `koanf:"max_nodes"`
	MaxRegexLength int `koanf:"max_regex_length"`
}

// Cooldown holds the free and premium windows of one resource.
type Cooldown struct {
	FreeCount     int `koanf:"free_count"`
	FreePeriod    int `koanf:"free_period"`
	PremiumCount  int `koanf:"premium_count"`
	PremiumPeriod int `koanf:"premium_period"`
}

// Quotas holds the per-tier resource ceilings.
type Quotas struct {
	Starboards         int `koanf:"starboards"`
	AutostarChannels   int `koanf:"autostar_channels"`
	OverridesPerTarget int `koanf:"overrides_per_target"`
	VoteEmojis         int `koanf:"vote_emojis"`
	RegexLength        int `koanf:"regex_length"`
	UploadBytes        int `koanf:"upload_bytes"`
}

// Dispatch configures how actions are sent to Discord.
type Dispatch struct {
	// Per-attempt timeout in milliseconds.
	Timeout int `koanf:"timeout"`
	// Maximum in-flight Discord calls.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	// Maximum retry attempts of a failed call.
	MaxRetries uint64 `koanf:"max_retries"`
}

// LoadConfig loads the configuration from the config search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// A missing .env is fine; the token may already be in the environment
	_ = godotenv.Load()

	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".starboard",
		homeDir + "/.starboard/config",
		"/etc/starboard/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, configName := range []string{"common", "bot"} {
		path, err := loadFile(k, configPaths, configName)
		if err != nil {
			return nil, "", err
		}

		if usedConfigPath == "" {
			usedConfigPath = path
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if token := os.Getenv(TokenEnv); token != "" {
		config.Bot.Discord.Token = token
	}

	return &config, usedConfigPath, nil
}

// loadFile loads the first name.toml found in paths into k.
func loadFile(k *koanf.Koanf, paths []string, name string) (string, error) {
	for _, path := range paths {
		configPath := fmt.Sprintf("%s/%s.toml", path, name)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, name)
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/starboard/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
