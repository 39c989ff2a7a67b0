// Package version holds build metadata for the rusheet CLI. The variables
// can be overridden at build time via -ldflags.
package version

import (
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
	metaColor  = color.New(color.Faint)
)

// String renders the version line, coloring each version component when
// colored is set.
func String(colored bool) string {
	var sb strings.Builder
	sb.WriteString("rusheet ")
	sb.WriteString(styledVersion(colored))
	if GitCommit != "" {
		sb.WriteString(" (" + paint(colored, metaColor, GitCommit) + ")")
	}
	if BuildDate != "" {
		sb.WriteString(" built " + paint(colored, metaColor, BuildDate))
	}
	return sb.String()
}

func styledVersion(colored bool) string {
	core, suffix, hasSuffix := strings.Cut(Version, "-")
	parts := strings.SplitN(core, ".", 3)
	if !colored || len(parts) != 3 {
		return Version
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if hasSuffix {
		out += "-" + suffix
	}
	return out
}

func paint(colored bool, c *color.Color, s string) string {
	if !colored {
		return s
	}
	return c.Sprint(s)
}
