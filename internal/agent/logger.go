package agent

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
)

// Logger prints user-facing agent output, optionally colored. It is separate
// from pkg/logging: this is conversation output for a person at a terminal,
// not structured diagnostics.
type Logger struct {
	verbose bool

	info    *color.Color
	success *color.Color
	errc    *color.Color
	wire    *color.Color
}

// NewLogger creates a logger. With color disabled all output is plain text;
// with verbose enabled, request/response payloads are printed too.
func NewLogger(verbose, colored bool) *Logger {
	l := &Logger{
		verbose: verbose,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		errc:    color.New(color.FgRed),
		wire:    color.New(color.FgHiBlack),
	}
	if !colored {
		for _, c := range []*color.Color{l.info, l.success, l.errc, l.wire} {
			c.DisableColor()
		}
	}
	return l
}

// Info prints an informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.info.Printf(format+"\n", args...)
}

// Success prints a positive-outcome line.
func (l *Logger) Success(format string, args ...interface{}) {
	l.success.Printf(format+"\n", args...)
}

// Error prints an error line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.errc.Printf(format+"\n", args...)
}

// Request prints an outgoing payload when verbose is enabled.
func (l *Logger) Request(method string, payload interface{}) {
	if !l.verbose {
		return
	}
	l.wire.Printf("-> %s %s\n", method, prettyJSON(payload))
}

// Response prints an incoming payload when verbose is enabled.
func (l *Logger) Response(method string, payload interface{}) {
	if !l.verbose {
		return
	}
	l.wire.Printf("<- %s %s\n", method, prettyJSON(payload))
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
