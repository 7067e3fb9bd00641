// Package config loads runtime configuration for the bot.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected with -c or -config.
//  3. A .env file in the working directory, then environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-t string    bot API token
//	-a int       admin user id
//	-transport   "telegram" or "console"
//	-s string    storage backend: sqlite, postgres, redis, json
//	-d string    database DSN (sqlite file or PostgreSQL URL)
//	-r string    resources file
//	-l string    log level
//	-updated     broadcast the "bot updated" notice on startup
//
// # File schema
//
// Durations accept strings such as "30s" or integer nanoseconds:
//
//	token: "123:abc"
//	admin_id: 999
//	storage: sqlite
//	database_dsn: symbiobot.db
//	poll_timeout: 30s
//	reminders:
//	  - "wednesday 11:00 reminder_first"
//	  - "thursday 11:00 reminder_second"
package config
