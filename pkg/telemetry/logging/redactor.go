package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces masked values.
const Redacted = "[REDACTED]"

// defaultSensitiveKeys are attribute keys whose values are always masked.
var defaultSensitiveKeys = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"token",
	"access_token",
	"api_key",
	"apikey",
	"secret",
	"password",
	"dsn",
}

// Redactor masks credentials in log attributes.
type Redactor struct {
	keys     map[string]struct{}
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor for the default sensitive keys plus extra.
func NewRedactor(extra []string) *Redactor {
	r := &Redactor{keys: make(map[string]struct{})}
	for _, k := range defaultSensitiveKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = struct{}{}
	}

	r.patterns = []redactPattern{
		{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer " + Redacted},
		{regexp.MustCompile(`\bsk-[a-zA-Z0-9_\-]{8,}`), "sk-" + Redacted},
		{regexp.MustCompile(`\beyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+`), Redacted},
		{regexp.MustCompile(`postgres(ql)?://[^:\s/]+:[^@\s]+@`), "postgres://" + Redacted + "@"},
	}
	return r
}

// IsSensitive reports whether values under key are masked.
func (r *Redactor) IsSensitive(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

// RedactString masks credentials embedded in free text.
func (r *Redactor) RedactString(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if r.IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); s != "" {
			if red := r.RedactString(s); red != s {
				return slog.String(a.Key, red)
			}
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			msg := err.Error()
			if red := r.RedactString(msg); red != msg {
				return slog.String(a.Key, red)
			}
		}
	}
	return a
}
