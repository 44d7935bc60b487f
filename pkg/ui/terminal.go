package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	cyan    = "\033[36m"
	yellow  = "\033[33m"
	red     = "\033[31m"
	green   = "\033[32m"
	magenta = "\033[35m"
	dim     = "\033[2m"
	reset   = "\033[0m"
)

// Printer writes CLI output, colored when Out is a terminal
type Printer struct {
	Out   io.Writer
	Color bool
}

// NewPrinter returns a Printer on w; colors are enabled for terminals
// unless NO_COLOR is set
func NewPrinter(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{Out: w, Color: color}
}

func (p *Printer) paint(code, text string) string {
	if !p.Color {
		return text
	}
	return code + text + reset
}

// Success prints msg in green
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.Out, p.paint(green, msg))
}

// Error prints msg and err in red
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.Out, p.paint(red, msg))
}

// Warning prints msg in yellow
func (p *Printer) Warning(msg string) {
	fmt.Fprintln(p.Out, p.paint(yellow, msg))
}

// Info prints a label and value pair
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.Out, "%s: %s\n", p.paint(cyan, label), p.paint(yellow, value))
}

// Highlight prints msg in magenta
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.Out, p.paint(magenta, msg))
}

// Dim prints msg dimmed
func (p *Printer) Dim(msg string) {
	fmt.Fprintln(p.Out, p.paint(dim, msg))
}
