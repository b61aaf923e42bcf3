package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Database   DatabaseConfig   `yaml:"database"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Action     ActionConfig     `yaml:"action"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// HeartbeatConfig holds the reconciliation loop configuration.
type HeartbeatConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	Timezone        string        `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "sqlite" or "postgres"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CalendarConfig holds the holiday classification configuration.
type CalendarConfig struct {
	Method         string `yaml:"method"` // "offline", "online" or "hybrid"
	DatasetPath    string `yaml:"dataset_path"`
	YearURL        string `yaml:"year_url"` // yearly table endpoint, %d is the year
	DayURL         string `yaml:"day_url"`  // optional per-day endpoint, %s is YYYY-MM-DD
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	HTTPProxy      string `yaml:"http_proxy"`
}

// ActionConfig lists the gateway backends used to apply mute state.
type ActionConfig struct {
	Backends []ActionBackendConfig `yaml:"backends"`
}

// ActionBackendConfig describes a single bot-gateway session.
type ActionBackendConfig struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
}

// PushConfig holds the VAPID keys for operator web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ScheduleConfig holds the mute rule definitions. Cross-reference checks
// happen when the schedule index is built, not here.
type ScheduleConfig struct {
	MuteGroups       []MuteGroupConfig       `yaml:"mute_groups"`
	WeekdaySchedules []WeekdayScheduleConfig `yaml:"weekday_schedules"`
	GroupPolicies    []GroupPolicyConfig     `yaml:"group_policies"`
}

// MuteGroupConfig defines one named day-cycle of mute transitions.
type MuteGroupConfig struct {
	ID            string       `yaml:"id"`
	Notify        bool         `yaml:"notify"`
	NotifyMessage string       `yaml:"notify_message"`
	Rules         []RuleConfig `yaml:"rules"`
}

// RuleConfig is a single transition: at the given wall-clock time the
// entity enters the given mute state.
type RuleConfig struct {
	At    string `yaml:"at"` // "HH:MM"
	Muted bool   `yaml:"muted"`
}

// WeekdayScheduleConfig maps every weekday name to a mute group id.
type WeekdayScheduleConfig struct {
	ID   string            `yaml:"id"`
	Days map[string]string `yaml:"days"` // "monday".."sunday" → group id
}

// GroupPolicyConfig binds one chat group to its schedule and overrides.
type GroupPolicyConfig struct {
	EntityID          string `yaml:"entity_id"`
	HolidayOverride   bool   `yaml:"holiday_override"`
	HolidayGroup      string `yaml:"holiday_group"`
	CompensationGroup string `yaml:"compensation_group"`
	WeekdaySchedule   string `yaml:"weekday_schedule"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Heartbeat.IntervalSeconds <= 0 {
		cfg.Heartbeat.IntervalSeconds = 60
	}
	cfg.Heartbeat.Interval = time.Duration(cfg.Heartbeat.IntervalSeconds) * time.Second

	if cfg.Heartbeat.Timezone == "" {
		cfg.Heartbeat.Timezone = "Asia/Shanghai"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "./muted.db"
	}

	switch cfg.Calendar.Method {
	case "offline", "online", "hybrid":
	case "":
		cfg.Calendar.Method = "offline"
	default:
		return nil, fmt.Errorf("calendar.method must be offline, online or hybrid, got %q", cfg.Calendar.Method)
	}
	if cfg.Calendar.TimeoutSeconds <= 0 {
		cfg.Calendar.TimeoutSeconds = 5
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
