// Package config loads the bot configuration: the reusable core sections plus
// storage, sessions, schedule, regions and the ops endpoint.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/lifeweeks/core/config"
	coredatabase "github.com/m3rciful/lifeweeks/core/database"
	"github.com/m3rciful/lifeweeks/internal/lifespan"
)

const (
	// SessionMemory keeps onboarding sessions in process memory.
	SessionMemory = "memory"
	// SessionRedis keeps onboarding sessions in Redis.
	SessionRedis = "redis"
)

const (
	defaultWeeklySpec      = "0 9 * * 0"
	defaultDailySpec       = "0 9 * * *"
	defaultDispatchTimeout = 10 * time.Second
	defaultWorkers         = 4
	defaultSessionTTL      = 24 * time.Hour
	defaultSessionPrefix   = "lifeweeks:session:"
)

// SessionConfig selects where onboarding sessions live.
type SessionConfig struct {
	Backend   string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisURL  string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	KeyPrefix string        `yaml:"key_prefix" envconfig:"SESSION_KEY_PREFIX"`
	TTL       time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
}

// ScheduleConfig drives the weekly statistics and daily greeting jobs.
type ScheduleConfig struct {
	Weekly          string        `yaml:"weekly" envconfig:"SCHEDULE_WEEKLY"`
	Daily           string        `yaml:"daily" envconfig:"SCHEDULE_DAILY"`
	Timezone        string        `yaml:"timezone" envconfig:"SCHEDULE_TIMEZONE"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" envconfig:"SCHEDULE_DISPATCH_TIMEOUT"`
	Workers         int           `yaml:"workers" envconfig:"SCHEDULE_WORKERS"`
	Disabled        bool          `yaml:"disabled" envconfig:"SCHEDULE_DISABLED"`
}

// RegionsConfig overrides the built-in region catalog.
type RegionsConfig struct {
	DefaultYears int               `yaml:"default_years" envconfig:"REGIONS_DEFAULT_YEARS"`
	List         []lifespan.Region `yaml:"list" ignored:"true"`
}

// OpsConfig configures the health and metrics listener. An empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Session  SessionConfig       `yaml:"session"`
	Schedule ScheduleConfig      `yaml:"schedule"`
	Regions  RegionsConfig       `yaml:"regions"`
	Ops      OpsConfig           `yaml:"ops"`

	catalog  *lifespan.Catalog
	location *time.Location
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Catalog returns the region catalog built during Normalize.
func (c *Config) Catalog() *lifespan.Catalog {
	return c.catalog
}

// Location returns the schedule time zone resolved during Normalize.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section, fills defaults and builds derived values.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	if err := normalizeSession(&cfg.Session); err != nil {
		return err
	}
	loc, err := normalizeSchedule(&cfg.Schedule)
	if err != nil {
		return err
	}
	cfg.location = loc

	regions := cfg.Regions.List
	if len(regions) == 0 {
		regions = lifespan.DefaultRegions()
	}
	if cfg.Regions.DefaultYears == 0 {
		cfg.Regions.DefaultYears = lifespan.DefaultExpectancyYears
	}
	catalog, err := lifespan.NewCatalog(regions, cfg.Regions.DefaultYears)
	if err != nil {
		return fmt.Errorf("regions: %w", err)
	}
	cfg.catalog = catalog

	cfg.Ops.Listen = strings.TrimSpace(cfg.Ops.Listen)
	return nil
}

func normalizeSession(s *SessionConfig) error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case "":
		s.Backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(s.RedisURL) == "" {
			return fmt.Errorf("session.redis_url is required when session.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", s.Backend)
	}
	if s.TTL < 0 {
		return fmt.Errorf("session.ttl must be >= 0")
	}
	if s.TTL == 0 {
		s.TTL = defaultSessionTTL
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = defaultSessionPrefix
	}
	return nil
}

func normalizeSchedule(s *ScheduleConfig) (*time.Location, error) {
	if strings.TrimSpace(s.Weekly) == "" {
		s.Weekly = defaultWeeklySpec
	}
	if strings.TrimSpace(s.Daily) == "" {
		s.Daily = defaultDailySpec
	}
	if _, err := cron.ParseStandard(s.Weekly); err != nil {
		return nil, fmt.Errorf("invalid schedule.weekly %q: %w", s.Weekly, err)
	}
	if _, err := cron.ParseStandard(s.Daily); err != nil {
		return nil, fmt.Errorf("invalid schedule.daily %q: %w", s.Daily, err)
	}

	if s.DispatchTimeout < 0 {
		return nil, fmt.Errorf("schedule.dispatch_timeout must be >= 0")
	}
	if s.DispatchTimeout == 0 {
		s.DispatchTimeout = defaultDispatchTimeout
	}
	if s.Workers < 0 {
		return nil, fmt.Errorf("schedule.workers must be >= 0")
	}
	if s.Workers == 0 {
		s.Workers = defaultWorkers
	}

	s.Timezone = strings.TrimSpace(s.Timezone)
	if s.Timezone == "" {
		s.Timezone = "Local"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}
