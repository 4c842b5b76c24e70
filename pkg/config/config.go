package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	MySQL        MySQLConfig        `yaml:"mysql"`
	Redis        RedisConfig        `yaml:"redis"`
	Logger       LoggerConfig       `yaml:"logger"`
	Platform     PlatformConfig     `yaml:"platform"`
	Fleet        FleetConfig        `yaml:"fleet"`
	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig chat platform API configuration
type PlatformConfig struct {
	BaseURL    string   `yaml:"base_url"`    // REST API base URL
	GatewayURL string   `yaml:"gateway_url"` // websocket gateway URL
	Token      string   `yaml:"token"`       // bot token
	Guilds     GuildMap `yaml:"guilds"`      // pool class -> candidate guild IDs
}

// GuildMap maps a pool class to the guilds eligible to host its channels
type GuildMap map[string][]string

// FleetConfig reconciliation tunables
type FleetConfig struct {
	RotationInterval    time.Duration `yaml:"rotation_interval"`     // full fleet rotation (default 8h)
	HealthCheckInterval time.Duration `yaml:"health_check_interval"` // liveness probing (default 5m)
	ScanInterval        time.Duration `yaml:"scan_interval"`         // missing-record scan (default 10m)
	PurgeInterval       time.Duration `yaml:"purge_interval"`        // grace-period purge (default 1h)
	GracePeriod         time.Duration `yaml:"grace_period"`          // pending-deletion dwell time (default 96h)
	BatchSize           int           `yaml:"batch_size"`            // webhooks created per pool class per rotation
	FleetCeiling        int           `yaml:"fleet_ceiling"`         // hard cap on |active| + |pending|
	GuildCapacity       int           `yaml:"guild_capacity"`        // max manager-created channels per guild
	CreateBackoff       time.Duration `yaml:"create_backoff"`        // pause after every 10 creations
	ProbeDelay          time.Duration `yaml:"probe_delay"`           // pause between liveness probes
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`         // per-probe timeout
	WebhookName         string        `yaml:"webhook_name"`          // display name for created webhooks
	WebhookIcon         string        `yaml:"webhook_icon"`          // avatar URL for created webhooks
	ChannelPrefix       string        `yaml:"channel_prefix"`        // sequential channel naming prefix
}

// NotificationConfig ops notification configuration
type NotificationConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// DefaultFleetConfig returns the fleet defaults used when values are missing or invalid
func DefaultFleetConfig() FleetConfig {
	return FleetConfig{
		RotationInterval:    8 * time.Hour,
		HealthCheckInterval: 5 * time.Minute,
		ScanInterval:        10 * time.Minute,
		PurgeInterval:       time.Hour,
		GracePeriod:         96 * time.Hour,
		BatchSize:           40,
		FleetCeiling:        750,
		GuildCapacity:       49,
		CreateBackoff:       10 * time.Second,
		ProbeDelay:          time.Second,
		ProbeTimeout:        10 * time.Second,
		WebhookName:         "Drop Alerts",
		WebhookIcon:         "",
		ChannelPrefix:       "drops",
	}
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	validateAndApplyDefaults(&cfg)

	GlobalConfig = &cfg
	return nil
}

// validateAndApplyDefaults replaces zero or negative fleet tunables with defaults
func validateAndApplyDefaults(cfg *Config) {
	defaults := DefaultFleetConfig()
	f := &cfg.Fleet

	if f.RotationInterval <= 0 {
		f.RotationInterval = defaults.RotationInterval
	}
	if f.HealthCheckInterval <= 0 {
		f.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if f.ScanInterval <= 0 {
		f.ScanInterval = defaults.ScanInterval
	}
	if f.PurgeInterval <= 0 {
		f.PurgeInterval = defaults.PurgeInterval
	}
	if f.GracePeriod <= 0 {
		f.GracePeriod = defaults.GracePeriod
	}
	if f.BatchSize <= 0 {
		f.BatchSize = defaults.BatchSize
	}
	if f.FleetCeiling <= 0 {
		f.FleetCeiling = defaults.FleetCeiling
	}
	if f.GuildCapacity <= 0 {
		f.GuildCapacity = defaults.GuildCapacity
	}
	if f.CreateBackoff <= 0 {
		f.CreateBackoff = defaults.CreateBackoff
	}
	if f.ProbeDelay <= 0 {
		f.ProbeDelay = defaults.ProbeDelay
	}
	if f.ProbeTimeout <= 0 {
		f.ProbeTimeout = defaults.ProbeTimeout
	}
	if f.WebhookName == "" {
		f.WebhookName = defaults.WebhookName
	}
	if f.ChannelPrefix == "" {
		f.ChannelPrefix = defaults.ChannelPrefix
	}
}
