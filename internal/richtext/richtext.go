// Package richtext turns a plain message plus its formatting spans back
// into HTML markup, so formatted text can be stored and re-sent.
package richtext

import (
	"html"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/dmitrijs2005/symbiobot/internal/transport"
)

// Tag is an opening and closing markup pair.
type Tag struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// DefaultTags covers the span types the chat client produces.
var DefaultTags = map[string]Tag{
	"bold":          {"<b>", "</b>"},
	"italic":        {"<i>", "</i>"},
	"underline":     {"<u>", "</u>"},
	"strikethrough": {"<s>", "</s>"},
	"spoiler":       {"<tg-spoiler>", "</tg-spoiler>"},
	"code":          {"<code>", "</code>"},
	"pre":           {"<pre>", "</pre>"},
	"blockquote":    {"<blockquote>", "</blockquote>"},
}

type span struct {
	start, end int
	open       string
	close      string
	seq        int
}

// Apply wraps the spans of text in markup from tags. Text links become
// anchors; span types missing from tags are ignored. Nested and
// overlapping spans are supported: at every boundary closing tags come
// first, innermost first, followed by opening tags, outermost first.
func Apply(text string, entities []transport.Entity, tags map[string]Tag) string {
	units := utf16.Encode([]rune(text))
	if len(entities) == 0 {
		return html.EscapeString(text)
	}
	if tags == nil {
		tags = DefaultTags
	}

	var spans []span
	for i, e := range entities {
		start := clamp(e.Offset, 0, len(units))
		end := clamp(e.Offset+e.Length, start, len(units))
		if start == end {
			continue
		}
		switch {
		case e.Type == "text_link":
			spans = append(spans, span{start, end, `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", i})
		default:
			if t, ok := tags[e.Type]; ok {
				spans = append(spans, span{start, end, t.Open, t.Close, i})
			}
		}
	}

	opens := make(map[int][]span)
	closes := make(map[int][]span)
	for _, s := range spans {
		opens[s.start] = append(opens[s.start], s)
		closes[s.end] = append(closes[s.end], s)
	}
	for _, l := range opens {
		// outermost (longest) first
		sort.SliceStable(l, func(i, j int) bool {
			if l[i].end != l[j].end {
				return l[i].end > l[j].end
			}
			return l[i].seq < l[j].seq
		})
	}
	for _, l := range closes {
		// innermost (latest opened) first
		sort.SliceStable(l, func(i, j int) bool {
			if l[i].start != l[j].start {
				return l[i].start > l[j].start
			}
			return l[i].seq > l[j].seq
		})
	}

	var b strings.Builder
	for i := 0; i <= len(units); i++ {
		for _, s := range closes[i] {
			b.WriteString(s.close)
		}
		for _, s := range opens[i] {
			b.WriteString(s.open)
		}
		if i == len(units) {
			break
		}
		// consume a surrogate pair as one character
		j := i + 1
		if utf16.IsSurrogate(rune(units[i])) && j < len(units) {
			if _, hasOpen := opens[j]; !hasOpen {
				if _, hasClose := closes[j]; !hasClose {
					j++
				}
			}
		}
		b.WriteString(html.EscapeString(string(utf16.Decode(units[i:j]))))
		i = j - 1
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
