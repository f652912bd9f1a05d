package ui

import (
	"fmt"
	"strings"
)

// FormatError renders a fatal CLI error with optional recovery hints,
// one hint per line under the message.
func FormatError(msg string, hints ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StyleBoldRed.Render("Error:"), msg)
	for _, h := range hints {
		fmt.Fprintf(&b, "  %s %s\n", StyleHint.Render(SymbolArrow), StyleHint.Render(h))
	}
	return b.String()
}
