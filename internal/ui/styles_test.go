package ui

import (
	"os"
	"testing"
)

func TestPaint(t *testing.T) {
	t.Cleanup(func() { SetColor(true) })

	SetColor(true)
	if got := Accent("fern"); got != "\x1b[38;5;74mfern\x1b[0m" {
		t.Errorf("Accent = %q", got)
	}
	if got := Stale(""); got != "" {
		t.Errorf("empty string styled: %q", got)
	}

	SetColor(false)
	for _, fn := range []func(string) string{Accent, Muted, Fresh, Stale} {
		if got := fn("fern"); got != "fern" {
			t.Errorf("styled with color disabled: %q", got)
		}
	}
}

func TestShouldUseColor_Env(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Force", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
				t.Setenv(k, tc.env[k])
			}
			if got := ShouldUseColor(os.Stdout); got != tc.want {
				t.Errorf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}
