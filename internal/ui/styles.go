// Package ui styles CLI output.
package ui

import "fmt"

// ANSI256 colors.
const (
	colorAccent = 74  // blue: names, ids
	colorMuted  = 245 // gray: dates, secondary fields
	colorFresh  = 108 // green: values served from the cache
	colorStale  = 179 // amber: dirty or refetched
)

var noColor bool

func paint(color int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// Accent renders s in the accent color.
func Accent(s string) string { return paint(colorAccent, s) }

// Muted renders s in gray.
func Muted(s string) string { return paint(colorMuted, s) }

// Fresh renders s in green.
func Fresh(s string) string { return paint(colorFresh, s) }

// Stale renders s in amber.
func Stale(s string) string { return paint(colorStale, s) }

// SetColor enables or disables styling globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
