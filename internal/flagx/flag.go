// Package flagx helps several flag sets share one command line: each
// consumer filters out only the flags it owns before parsing.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the flags named in valued and switches, in their
// original order. A valued flag also keeps the argument after it unless that
// argument starts with "-". Switches never take a separate value, so
// "-updated start" keeps just "-updated". The "-name=value" form is kept
// whole for both kinds.
func FilterArgs(args []string, valued []string, switches ...string) []string {
	kind := make(map[string]bool, len(valued)+len(switches))
	for _, f := range valued {
		kind[f] = true
	}
	for _, f := range switches {
		kind[f] = false
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := kind[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		takesValue, ok := kind[arg]
		if !ok {
			continue
		}
		filtered = append(filtered, arg)
		if takesValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigFile returns the path given with -c, -config or --config, or "".
// When several are present the last one wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
