package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is aligned plain text (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
)

// Field is one key/value line of text output.
type Field struct {
	Key   string
	Value any
}

// Fields is an ordered set of key/value lines.
type Fields []Field

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter prints Fields as an aligned two-column table and anything
// else with %v.
type TextFormatter struct{}

// FormatTo writes data to w.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	fields, ok := data.(Fields)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, field := range fields {
		if _, err := fmt.Fprintf(tw, "%s:\t%v\n", field.Key, field.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON. Fields become an object.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	if fields, ok := data.(Fields); ok {
		m := make(map[string]any, len(fields))
		for _, field := range fields {
			m[field.Key] = field.Value
		}
		data = m
	}

	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{Indent: true}
	}
	return &TextFormatter{}
}
