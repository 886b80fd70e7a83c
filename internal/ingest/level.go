package ingest

import (
	"fmt"
	"strings"
)

// Level is a logger's severity threshold.
type Level int

// Severity levels, lowest first.
const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
	CriticalLevel
)

// String returns the level's wire name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	case CriticalLevel:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a level name (case-insensitive, common aliases accepted) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return DebugLevel, nil
	case "INFO", "":
		return InfoLevel, nil
	case "WARNING", "WARN":
		return WarningLevel, nil
	case "ERROR", "ERR":
		return ErrorLevel, nil
	case "CRITICAL", "CRIT", "FATAL":
		return CriticalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown level %q", s)
	}
}

// levelOf returns the threshold rank of a free-form level name. Unknown names
// rank as INFO so they are never silently filtered below the default threshold.
func levelOf(name string) Level {
	l, err := ParseLevel(name)
	if err != nil {
		return InfoLevel
	}
	return l
}
