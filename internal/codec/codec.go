// Package codec maps long button labels to short, reversible codes so that
// callback payloads stay within the transport's size limit.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/symbiobot/internal/common"
)

const (
	// Prefix starts every generated code.
	Prefix = "__enc_"

	// MaxPayload is the largest callback payload, in bytes, the transport
	// round-trips.
	MaxPayload = 64
)

var codePattern = regexp.MustCompile(`^` + Prefix + `[0-9]+$`)

// Codec is an append-only, process-scoped label map. It is safe for
// concurrent use.
type Codec struct {
	mu      sync.RWMutex
	forward map[string]string
	reverse map[string]string
}

func New() *Codec {
	return &Codec{
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
}

// Encode returns the code for label, allocating the next one on first use.
func (c *Codec) Encode(label string) string {
	c.mu.RLock()
	code, ok := c.forward[label]
	c.mu.RUnlock()
	if ok {
		return code
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if code, ok := c.forward[label]; ok {
		return code
	}
	code = Prefix + strconv.Itoa(len(c.forward))
	c.forward[label] = code
	c.reverse[code] = label
	return code
}

// Decode reverses Encode. Strings that are not generated codes are returned
// unchanged; a generated code that was never issued is an error.
func (c *Codec) Decode(s string) (string, error) {
	if !codePattern.MatchString(s) {
		return s, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	label, ok := c.reverse[s]
	if !ok {
		return "", fmt.Errorf("%q: %w", s, common.ErrorUnknownCode)
	}
	return label, nil
}

// Fit builds the payload tag+label, substituting a code for label when the
// result would exceed MaxPayload bytes.
func (c *Codec) Fit(tag, label string) string {
	if len(tag)+len(label) <= MaxPayload {
		return tag + label
	}
	return tag + c.Encode(label)
}

// Len reports how many labels have been encoded.
func (c *Codec) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.forward)
}
