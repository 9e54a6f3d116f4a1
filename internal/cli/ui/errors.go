package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized message with suggestions and help commands
//
// Example output:
//
//	❌ UNKNOWN ENTITY: Custmer
//
//	   Did you mean: Customer?
//
//	   → List entities: relmap model
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header = color.New(color.FgYellow, color.Bold)
		symbol = "⚠️"
	case ErrorLevelInfo:
		header = color.New(color.FgCyan, color.Bold)
		symbol = "ℹ️"
	default:
		header = color.New(color.FgRed, color.Bold)
		symbol = "❌"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		header.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// WriteError writes a formatted message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// NotFoundError reports an unknown entity or navigation with close matches
func NotFoundError(kind, name string, candidates []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:        ErrorLevelError,
		Context:      "unknown " + kind,
		Problem:      name,
		Suggestions:  Suggest(name, candidates, 3),
		HelpCommands: []string{"List entities: relmap model"},
		NoColor:      noColor,
	})
}

// ConfigError reports a configuration or model file problem
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat relmap.yml",
			"Get help: relmap --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
