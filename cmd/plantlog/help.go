package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plantlog/internal/ui"
)

var (
	// "Events:", "Flags:" and other group headings. "Usage:" stays plain.
	reHeading = regexp.MustCompile(`(?m)^((?:[A-Z][a-z]+ ?)+:)\s*$`)
	// A subcommand row: two spaces, the name, then at least two spaces.
	reSubcommand = regexp.MustCompile(`(?m)^  ([a-z][\w-]*)(\s{2,})`)
	reDefaultVal = regexp.MustCompile(`\(default [^)]*\)`)
)

// styledHelp renders cobra's usage text with headings and command names
// highlighted when stdout takes color.
func styledHelp(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	if noColor || !ui.ShouldUseColor(os.Stdout) {
		_ = cmd.Usage()
		return
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	_ = cmd.Usage()
	cmd.SetOut(out)
	fmt.Fprint(out, styleHelpText(buf.String()))
}

func styleHelpText(s string) string {
	s = reHeading.ReplaceAllStringFunc(s, func(m string) string {
		if m == "Usage:" {
			return m
		}
		return ui.Accent(m)
	})
	s = reSubcommand.ReplaceAllStringFunc(s, func(m string) string {
		p := reSubcommand.FindStringSubmatch(m)
		return "  " + ui.Accent(p[1]) + p[2]
	})
	return reDefaultVal.ReplaceAllStringFunc(s, ui.Muted)
}
