package utils

import (
	"log"
	"runtime/debug"
	"strings"
	"unicode"
)

// GoSafe runs fn in a goroutine and recovers from panics so a single
// misbehaving task cannot take down the process.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeText strips control characters and collapses whitespace runs so the
// text is safe to persist and embed in prompts.
func SafeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
