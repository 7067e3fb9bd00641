package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/flagx"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"gopkg.in/yaml.v3"
)

// Duration reads either a Go duration string or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) set(v any) error {
	switch t := v.(type) {
	case float64:
		d.Duration = time.Duration(t)
	case int:
		d.Duration = time.Duration(t)
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

// FileConfig is the on-disk shape. Absent keys leave the current value.
type FileConfig struct {
	Token         *string `json:"token" yaml:"token"`
	AdminID       *int64  `json:"admin_id" yaml:"admin_id"`
	AdminUsername *string `json:"admin_username" yaml:"admin_username"`
	ClubName      *string `json:"club_name" yaml:"club_name"`

	Transport   *string   `json:"transport" yaml:"transport"`
	APIURL      *string   `json:"api_url" yaml:"api_url"`
	PollTimeout *Duration `json:"poll_timeout" yaml:"poll_timeout"`

	Storage       *string `json:"storage" yaml:"storage"`
	DatabaseDSN   *string `json:"database_dsn" yaml:"database_dsn"`
	RedisAddr     *string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword *string `json:"redis_password" yaml:"redis_password"`
	RedisDB       *int    `json:"redis_db" yaml:"redis_db"`
	RedisPrefix   *string `json:"redis_prefix" yaml:"redis_prefix"`
	JSONPath      *string `json:"json_path" yaml:"json_path"`

	ResourcesPath *string `json:"resources" yaml:"resources"`
	ExportName    *string `json:"export_name" yaml:"export_name"`

	S3Region       *string   `json:"s3_region" yaml:"s3_region"`
	S3Endpoint     *string   `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey    *string   `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    *string   `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket       *string   `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix       *string   `json:"s3_prefix" yaml:"s3_prefix"`
	S3PathStyle    *bool     `json:"s3_path_style" yaml:"s3_path_style"`
	S3LinkLifetime *Duration `json:"s3_link_lifetime" yaml:"s3_link_lifetime"`

	RemindersEnabled *bool    `json:"reminders_enabled" yaml:"reminders_enabled"`
	Reminders        []string `json:"reminders" yaml:"reminders"`
	Timezone         *string  `json:"timezone" yaml:"timezone"`

	ScaleMin     *int `json:"scale_min" yaml:"scale_min"`
	ScaleMax     *int `json:"scale_max" yaml:"scale_max"`
	ScaleDefault *int `json:"scale_default" yaml:"scale_default"`

	LogLevel    *string `json:"log_level" yaml:"log_level"`
	LogFormat   *string `json:"log_format" yaml:"log_format"`
	ServiceName *string `json:"service_name" yaml:"service_name"`

	Updated *bool `json:"updated" yaml:"updated"`
}

// parseFile overlays the file named by -c/-config, if any. Files ending in
// .json are decoded as JSON, anything else as YAML.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.apply(cfg)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (fc *FileConfig) apply(c *Config) {
	setIf(&c.Token, fc.Token)
	setIf(&c.AdminID, fc.AdminID)
	setIf(&c.AdminUsername, fc.AdminUsername)
	setIf(&c.ClubName, fc.ClubName)
	setIf(&c.Transport, fc.Transport)
	setIf(&c.APIURL, fc.APIURL)
	if fc.PollTimeout != nil {
		c.PollTimeout = fc.PollTimeout.Duration
	}
	if fc.Storage != nil {
		c.Storage = records.Backend(*fc.Storage)
	}
	setIf(&c.DatabaseDSN, fc.DatabaseDSN)
	setIf(&c.RedisAddr, fc.RedisAddr)
	setIf(&c.RedisPassword, fc.RedisPassword)
	setIf(&c.RedisDB, fc.RedisDB)
	setIf(&c.RedisPrefix, fc.RedisPrefix)
	setIf(&c.JSONPath, fc.JSONPath)
	setIf(&c.ResourcesPath, fc.ResourcesPath)
	setIf(&c.ExportName, fc.ExportName)
	setIf(&c.S3Region, fc.S3Region)
	setIf(&c.S3Endpoint, fc.S3Endpoint)
	setIf(&c.S3AccessKey, fc.S3AccessKey)
	setIf(&c.S3SecretKey, fc.S3SecretKey)
	setIf(&c.S3Bucket, fc.S3Bucket)
	setIf(&c.S3Prefix, fc.S3Prefix)
	setIf(&c.S3PathStyle, fc.S3PathStyle)
	if fc.S3LinkLifetime != nil {
		c.S3LinkLifetime = fc.S3LinkLifetime.Duration
	}
	setIf(&c.RemindersEnabled, fc.RemindersEnabled)
	if fc.Reminders != nil {
		c.Reminders = fc.Reminders
	}
	setIf(&c.Timezone, fc.Timezone)
	setIf(&c.ScaleMin, fc.ScaleMin)
	setIf(&c.ScaleMax, fc.ScaleMax)
	setIf(&c.ScaleDefault, fc.ScaleDefault)
	setIf(&c.LogLevel, fc.LogLevel)
	setIf(&c.LogFormat, fc.LogFormat)
	setIf(&c.ServiceName, fc.ServiceName)
	setIf(&c.Updated, fc.Updated)
}
