// Package ui renders progress, plans and run summaries for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Banner is printed at CLI start-up.
const Banner = `
 ┌─┐┌─┐┌─┐┌┬┐┌─┐┌─┐┬─┐┌─┐┌─┐┌─┐┬─┐
 ├─┘│ │└─┐ │ └─┐│  ├┬┘├─┤├─┘├┤ ├┬┘
 ┴  └─┘└─┘ ┴ └─┘└─┘┴└─┴ ┴┴  └─┘┴└─
    FEED EXTRACTION UTILITY
`

// Output is where the print helpers write.
var Output io.Writer = os.Stdout

// Color helpers.
var (
	Cyan    = paint(text.FgCyan)
	Yellow  = paint(text.FgYellow)
	Red     = paint(text.FgRed)
	Green   = paint(text.FgGreen)
	Magenta = paint(text.FgMagenta)
	Dim     = paint(text.Faint)
)

func paint(c text.Color) func(string) string {
	return func(s string) string { return c.Sprint(s) }
}

// withDetail appends ": detail" when one is given.
func withDetail(msg string, detail []interface{}) string {
	if len(detail) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, detail[0])
}

func PrintLogo() {
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints msg in red, followed by an optional detail.
func PrintError(msg string, detail ...interface{}) {
	fmt.Fprintln(Output, Red(withDetail(msg, detail)))
}

// PrintWarning prints msg in yellow, followed by an optional detail.
func PrintWarning(msg string, detail ...interface{}) {
	fmt.Fprintln(Output, Yellow(withDetail(msg, detail)))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}

// PrintInfo prints a "label: value" line.
func PrintInfo(label, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}
