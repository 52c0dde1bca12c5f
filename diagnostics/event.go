package diagnostics

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Severity orders diagnostic events. Events below the facade threshold are
// discarded before they reach any sink.
type Severity int8

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR" or "UNKNOWN".
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SlogLevel maps the severity onto the log/slog level scale.
func (s Severity) SlogLevel() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarn:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SeverityFromSlog maps a slog level onto the nearest severity at or below it.
func SeverityFromSlog(l slog.Level) Severity {
	switch {
	case l >= slog.LevelError:
		return SeverityError
	case l >= slog.LevelWarn:
		return SeverityWarn
	case l >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// ParseSeverity parses a case-insensitive severity name. "warning" is accepted
// as an alias of "warn".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so severities can be read
// from environment variables and manifests.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// Field is an optional key/value pair attached to an event.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Event is a structured diagnostic record.
type Event struct {
	Time     time.Time
	Source   capability.ID
	Message  string
	Fields   []Field
	Severity Severity
}

// Field returns the value of the first field named key.
func (e Event) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// fieldsFromArgs converts alternating key/value arguments into fields.
// A trailing key without value is kept under "!BADKEY", matching slog.
func fieldsFromArgs(args []any) []Field {
	if len(args) == 0 {
		return nil
	}
	fields := make([]Field, 0, (len(args)+1)/2)
	for len(args) > 0 {
		switch k := args[0].(type) {
		case Field:
			fields = append(fields, k)
			args = args[1:]
		case string:
			if len(args) == 1 {
				fields = append(fields, Field{Key: "!BADKEY", Value: k})
				args = nil
				continue
			}
			fields = append(fields, Field{Key: k, Value: args[1]})
			args = args[2:]
		default:
			fields = append(fields, Field{Key: "!BADKEY", Value: k})
			args = args[1:]
		}
	}
	return fields
}
