package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"investsql/internal/models"
)

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.FgCyan, color.Bold)
)

const banner = "============================================================"

func printOK(w io.Writer, format string, args ...any) {
	okColor.Fprint(w, "[OK] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprint(w, "[WARNING] ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "[ERROR] ")
	fmt.Fprintln(w, err)
}

func printBanner(w io.Writer, title string) {
	fmt.Fprintln(w, banner)
	headingColor.Fprintln(w, title)
	fmt.Fprintln(w, banner)
}

func printWarnings(w io.Writer, warnings []models.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	warnColor.Fprintf(w, "[WARNINGS] %d\n", len(warnings))
	for _, wn := range warnings {
		fmt.Fprintf(w, "   - %s\n", wn)
	}
}

// truncate shortens s for table display
func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
