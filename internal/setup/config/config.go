package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	Version     int         `koanf:"version"`
	Debug       Debug       `koanf:"debug"`
	PostgreSQL  PostgreSQL  `koanf:"postgresql"`
	Redis       Redis       `koanf:"redis"`
	Discord     Discord     `koanf:"discord"`
	Hypixel     Hypixel     `koanf:"hypixel"`
	Progression Progression `koanf:"progression"`
	Roster      Roster      `koanf:"roster"`
}

// Debug contains debug-related configuration.
type Debug struct {
	LogLevel      string `koanf:"log_level"`        // Log level (debug, info, warn, error)
	MaxLogsToKeep int    `koanf:"max_logs_to_keep"` // Maximum log sessions to keep
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	Host         string `koanf:"host"`           // Database hostname
	Port         int    `koanf:"port"`           // Database port
	User         string `koanf:"user"`           // Database username
	Password     string `koanf:"password"`       // Database password
	DBName       string `koanf:"db_name"`        // Database name
	MaxOpenConns int    `koanf:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `koanf:"max_idle_conns"` // Maximum idle connections
	MaxLifetime  int    `koanf:"max_lifetime"`   // Connection lifetime in minutes
	MaxIdleTime  int    `koanf:"max_idle_time"`  // Idle timeout in minutes
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`     // Redis hostname
	Port     int    `koanf:"port"`     // Redis port
	Username string `koanf:"username"` // Redis username
	Password string `koanf:"password"` // Redis password
}

// Discord contains Discord bot configuration.
type Discord struct {
	Token   string `koanf:"token"`    // Bot token for authentication
	GuildID uint64 `koanf:"guild_id"` // Guild where commands are registered
}

// Hypixel contains Hypixel API configuration.
type Hypixel struct {
	APIKey    string `koanf:"api_key"`    // API key for authentication
	GuildName string `koanf:"guild_name"` // Guild to reconcile against
}

// Progression contains XP progression configuration.
type Progression struct {
	MessageXP       int64 `koanf:"message_xp"`       // XP awarded per eligible message
	CooldownSeconds int   `koanf:"cooldown_seconds"` // Minimum seconds between message awards
	FinishBonusXP   int64 `koanf:"finish_bonus_xp"`  // XP awarded to a carrier on ticket finish
}

// Roster contains roster sync job configuration.
type Roster struct {
	IntervalHours  int   `koanf:"interval_hours"`  // Hours between scheduled sync runs
	XPDivisor      int64 `koanf:"xp_divisor"`      // Daily guild XP units per bonus XP point
	MaxConcurrent  int   `koanf:"max_concurrent"`  // Maximum outstanding identity lookups
	LookupsPerSec  int   `koanf:"lookups_per_sec"` // Mojang API rate limit
	CacheTTLHours  int   `koanf:"cache_ttl_hours"` // TTL for cached name resolutions
}

// LoadConfig loads the configuration from the first config.toml found in the
// search paths. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string
	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/config.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}
	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check the config file version
	switch {
	case config.Version == 0:
		return nil, "", ErrConfigVersionMissing
	case config.Version != CurrentVersion:
		return nil, "", fmt.Errorf("%w: expected %d, got %d",
			ErrConfigVersionMismatch, CurrentVersion, config.Version)
	}

	applyDefaults(&config)
	return &config, usedConfigPath, nil
}

// applyDefaults fills in zero-valued tunables with their defaults.
func applyDefaults(config *Config) {
	if config.Progression.MessageXP == 0 {
		config.Progression.MessageXP = 5
	}
	if config.Progression.CooldownSeconds == 0 {
		config.Progression.CooldownSeconds = 60
	}
	if config.Progression.FinishBonusXP == 0 {
		config.Progression.FinishBonusXP = 100
	}
	if config.Roster.IntervalHours == 0 {
		config.Roster.IntervalHours = 24
	}
	if config.Roster.XPDivisor == 0 {
		config.Roster.XPDivisor = 1000
	}
	if config.Roster.MaxConcurrent == 0 {
		config.Roster.MaxConcurrent = 4
	}
	if config.Roster.LookupsPerSec == 0 {
		config.Roster.LookupsPerSec = 2
	}
	if config.Roster.CacheTTLHours == 0 {
		config.Roster.CacheTTLHours = 24
	}
}
