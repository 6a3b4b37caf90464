package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Startup output goes to a plain writer so the layout commands can print
// to cobra's output and tests can capture it.

func printBanner(out io.Writer, layout string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Fprintln(out, "\033[36;1m  │\033[0m              twinsim  v0.1.0              \033[36;1m│\033[0m")
	fmt.Fprintln(out, "\033[36;1m  │\033[0m        factory digital twin in Go         \033[36;1m│\033[0m")
	fmt.Fprintln(out, "\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  \033[1mLayout:\033[0m %s\n\n", layout)
}

func printSection(out io.Writer, title string) {
	lineLen := 46 - utf8.RuneCountInString(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Fprintf(out, "  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(out io.Writer, label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - utf8.RuneCountInString(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Fprintf(out, "  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(out io.Writer, msg string) {
	fmt.Fprintf(out, "  \033[32m✓\033[0m %s\n", msg)
}

func printReady(out io.Writer, msg string) {
	fmt.Fprintf(out, "  \033[32m▶\033[0m %s\n", msg)
}
