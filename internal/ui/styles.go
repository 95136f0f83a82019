// Package ui holds the terminal presentation helpers: status icons,
// the stage progress bar and interactive prompts.
package ui

import (
	"fmt"
	"io"
)

// Emoji icons
var (
	IconTool    = "🔧"
	IconSuccess = "✅"
	IconWarning = "⚠️ "
	IconError   = "❌"
	IconRocket  = "🚀"
	IconPackage = "📦"
	IconTest    = "🧪"
	IconWatch   = "👀"
)

// Status prints a single icon-prefixed status line.
func Status(w io.Writer, icon, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}
