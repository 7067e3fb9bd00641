package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/symbiobot/internal/flagx"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
)

// parseFlags overlays the command-line flags this package owns; other
// arguments are ignored.
func parseFlags(c *Config, args []string) error {
	filtered := flagx.FilterArgs(args,
		[]string{"-t", "-a", "-transport", "-s", "-d", "-r", "-l"},
		"-updated", "--updated")

	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.Token, "t", c.Token, "bot API token")
	fs.Int64Var(&c.AdminID, "a", c.AdminID, "admin user id")
	fs.StringVar(&c.Transport, "transport", c.Transport, "telegram or console")
	storage := fs.String("s", string(c.Storage), "storage backend")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.ResourcesPath, "r", c.ResourcesPath, "resources file")
	fs.StringVar(&c.LogLevel, "l", c.LogLevel, "log level")
	fs.BoolVar(&c.Updated, "updated", c.Updated, "broadcast the update notice on startup")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	c.Storage = records.Backend(*storage)
	return nil
}
