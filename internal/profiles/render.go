package profiles

import (
	"fmt"
	"html"
	"strings"

	"github.com/dmitrijs2005/symbiobot/internal/schema"
)

// Placeholder marks an unset field in outlines.
const Placeholder = "⬜⬜⬜"

// FormatValue renders a field value for display; unset values become the placeholder.
func FormatValue(f schema.Field, v any) string {
	if f.IsEmpty(v) {
		return Placeholder
	}
	if l, ok := v.([]string); ok {
		return html.EscapeString(strings.Join(l, ", "))
	}
	return html.EscapeString(fmt.Sprint(v))
}

// Outline lists every schema field of p, one per line.
func Outline(p *Profile, s *schema.Schema) string {
	var b strings.Builder
	for _, f := range s.Fields() {
		v, _ := p.Value(f.Name)
		fmt.Fprintf(&b, "\n<b>%s</b> : %s", html.EscapeString(f.Label), FormatValue(f, v))
	}
	return b.String()
}

// Card renders p inside a frame whose width follows p.Scale.
func Card(p *Profile, s *schema.Schema) string {
	scale := max(p.Scale, 0)
	var b strings.Builder
	b.WriteString(strings.Repeat("─", scale+3))
	b.WriteString("\n╭" + strings.Repeat("─", scale) + "╮\n")
	for _, f := range s.Fields() {
		v, _ := p.Value(f.Name)
		text := ""
		if !f.IsEmpty(v) {
			text = FormatValue(f, v)
		}
		fmt.Fprintf(&b, "| <b>%s</b> : %s\n", html.EscapeString(f.Label), text)
	}
	b.WriteString("╰" + strings.Repeat("─", scale) + "╯")
	return b.String()
}

// Frame is a titled border set.
type Frame struct {
	Header string
	Line   string
	Bottom string
}

// Borders builds a frame of the given width with title centred in the header.
func Borders(scale int, title string) Frame {
	scale++
	title = " " + title + " "
	pad := max(((scale+3)-len([]rune(title)))/2, 0)
	return Frame{
		Header: "╭" + strings.Repeat("─", pad) + title + strings.Repeat("─", pad) + "╮",
		Line:   "  " + strings.Repeat("─", scale+1),
		Bottom: "╰" + strings.Repeat("─", scale) + "╯",
	}
}
