// Package cmdutils holds console output helpers shared by the CLI commands.
package cmdutils

import (
	"fmt"
	"io"
	"strings"

	"github.com/crystaldolphin/mcpchat/internal/tools"
)

const logo = "💬"

// PrintResponse writes a model reply under the provider label. Empty text is
// skipped.
func PrintResponse(w io.Writer, provider, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n%s\n\n", logo, provider, text)
}

// PrintEvent writes one progress event as an indented hint line.
func PrintEvent(w io.Writer, status, details string) {
	if details == "" {
		fmt.Fprintf(w, "  ↳ %s\n", status)
		return
	}
	fmt.Fprintf(w, "  ↳ %s: %s\n", status, details)
}

// PrintToolGroups lists every connected tool provider with its tools.
func PrintToolGroups(w io.Writer, groups []tools.ToolGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No MCP tools connected.")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d tools)\n", g.Origin, len(g.Tools))
		for _, t := range g.Tools {
			desc := firstLine(t.Description)
			if desc == "" {
				fmt.Fprintf(w, "  - %s\n", t.Name)
				continue
			}
			fmt.Fprintf(w, "  - %-24s %s\n", t.Name, desc)
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
