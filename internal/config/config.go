package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/export"
	"github.com/dmitrijs2005/symbiobot/internal/profiles"
	"github.com/dmitrijs2005/symbiobot/internal/reminder"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
)

// Transports.
const (
	TransportTelegram = "telegram"
	TransportConsole  = "console"
)

// Config holds runtime settings for the bot.
type Config struct {
	Token         string
	AdminID       int64
	AdminUsername string
	ClubName      string

	Transport   string
	APIURL      string
	PollTimeout time.Duration

	Storage       records.Backend
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	JSONPath      string

	ResourcesPath string
	ExportName    string

	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Prefix       string
	S3PathStyle    bool
	S3LinkLifetime time.Duration

	RemindersEnabled bool
	Reminders        []string
	Timezone         string

	ScaleMin     int
	ScaleMax     int
	ScaleDefault int

	LogLevel    string
	LogFormat   string
	ServiceName string

	Updated bool
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.ClubName = "Symbiosis"
	c.Transport = TransportTelegram
	c.APIURL = "https://api.telegram.org"
	c.PollTimeout = 30 * time.Second
	c.Storage = records.BackendSQLite
	c.DatabaseDSN = "symbiobot.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPrefix = "symbiobot:"
	c.JSONPath = "database.json"
	c.ResourcesPath = "resources.yaml"
	c.ExportName = "members.xlsx"
	c.S3Region = "us-east-1"
	c.S3LinkLifetime = 24 * time.Hour
	c.RemindersEnabled = true
	c.Reminders = []string{"wednesday 11:00 reminder_first", "thursday 11:00 reminder_second"}
	c.Timezone = "Asia/Tehran"
	c.ScaleMin = profiles.DefaultScaleBounds.Min
	c.ScaleMax = profiles.DefaultScaleBounds.Max
	c.ScaleDefault = profiles.DefaultScaleBounds.Default
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.ServiceName = "symbiobot"
}

// Load builds a Config from defaults, the optional config file, the
// environment and args (without the program name). getenv is usually
// os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the process arguments and environment, loading .env
// first when present.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return Load(os.Args[1:], os.Getenv)
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportTelegram:
		if c.Token == "" {
			errs = append(errs, errors.New("token is required for the telegram transport"))
		}
	case TransportConsole:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.Storage {
	case records.BackendSQLite, records.BackendPostgres, records.BackendRedis, records.BackendJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if c.ScaleMin < 1 || c.ScaleMin > c.ScaleMax || c.ScaleDefault < c.ScaleMin || c.ScaleDefault > c.ScaleMax {
		errs = append(errs, fmt.Errorf("scale bounds %d..%d with default %d are inconsistent", c.ScaleMin, c.ScaleMax, c.ScaleDefault))
	}
	if c.RemindersEnabled {
		if _, err := c.Schedule(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bounds returns the scale limits.
func (c *Config) Bounds() profiles.ScaleBounds {
	return profiles.ScaleBounds{Min: c.ScaleMin, Max: c.ScaleMax, Default: c.ScaleDefault}
}

// StorageOptions returns the record repository settings.
func (c *Config) StorageOptions() records.Options {
	return records.Options{
		Backend:       c.Storage,
		DSN:           c.DatabaseDSN,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   c.RedisPrefix,
		JSONPath:      c.JSONPath,
	}
}

// S3 returns the export upload settings. Uploads are off without a bucket.
func (c *Config) S3() export.S3Config {
	return export.S3Config{
		Region:       c.S3Region,
		Endpoint:     c.S3Endpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		Prefix:       c.S3Prefix,
		PathStyle:    c.S3PathStyle,
		LinkLifetime: c.S3LinkLifetime,
	}
}

// Schedule parses the reminder slots in the configured time zone.
func (c *Config) Schedule() (reminder.Schedule, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return reminder.Schedule{}, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	s := reminder.Schedule{Location: loc}
	for _, raw := range c.Reminders {
		slot, err := reminder.ParseSlot(raw)
		if err != nil {
			return reminder.Schedule{}, err
		}
		s.Slots = append(s.Slots, slot)
	}
	return s, nil
}
