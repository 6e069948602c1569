// Package ui renders human-readable output for the caldera commands:
// structure reports, carrier tables and trial fronts, styled with lipgloss
// and written to stderr unless another writer is given.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes styled output to a writer.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to stderr.
func New() *Printer {
	return &Printer{w: os.Stderr}
}

// NewWriter returns a Printer writing to w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Banner prints the program banner.
func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.w, styleBanner.Render("CALDERA  "+styleMuted.Render("supply-system structures "+version)))
}

// Info prints a de-emphasized line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleMuted.Render(msg))
}

// Success prints a success line.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, styleSuccess.Render(iconDone+" "+msg))
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.w, styleAccent.Render(iconWarn+" "+msg))
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, styleDanger.Render("error: ")+msg)
}
