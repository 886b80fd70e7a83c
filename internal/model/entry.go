package model

import "time"

// LogEntry represents a single captured log record as it is retained and delivered.
type LogEntry struct {
	Timestamp  string    `json:"timestamp"`   // sortable, formatted at ingest
	Level      string    `json:"level"`       // passed through unvalidated
	Message    string    `json:"message"`     // fully rendered text
	LoggerName string    `json:"logger_name"` // owning logger
	Time       time.Time `json:"-"`
}

// RawLine is an unparsed line read from a tailed file.
type RawLine struct {
	Text   string
	Source string // originating file path
}
