package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"github.com/joho/godotenv"
)

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays non-empty environment variables.
func parseEnv(c *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("TOKEN", &c.Token)
	if v := getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_ID: %w", err))
		} else {
			c.AdminID = id
		}
	}
	str("ADMIN_USERNAME", &c.AdminUsername)
	str("CLUB_NAME", &c.ClubName)
	str("TRANSPORT", &c.Transport)
	str("API_URL", &c.APIURL)
	dur("POLL_TIMEOUT", &c.PollTimeout)
	if v := getenv("STORAGE"); v != "" {
		c.Storage = records.Backend(v)
	}
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	str("REDIS_PREFIX", &c.RedisPrefix)
	str("JSON_PATH", &c.JSONPath)
	str("RESOURCES", &c.ResourcesPath)
	str("EXPORT_NAME", &c.ExportName)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_PREFIX", &c.S3Prefix)
	boolean("S3_PATH_STYLE", &c.S3PathStyle)
	dur("S3_LINK_LIFETIME", &c.S3LinkLifetime)
	boolean("REMINDERS_ENABLED", &c.RemindersEnabled)
	if v := getenv("REMINDERS"); v != "" {
		c.Reminders = splitSemicolons(v)
	}
	str("TIMEZONE", &c.Timezone)
	num("SCALE_MIN", &c.ScaleMin)
	num("SCALE_MAX", &c.ScaleMax)
	num("SCALE_DEFAULT", &c.ScaleDefault)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	return errors.Join(errs...)
}

// splitSemicolons splits "wed 11:00;thu 11:00" into slots.
func splitSemicolons(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
