// Package parser turns raw lines from tailed files into ingestion records.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/atikulmunna/logrelay/internal/ingest"
)

// Parser converts a raw log line into a record for the named logger.
type Parser interface {
	Parse(raw string, name string) ingest.Record
}

// New returns the parser for a configured format: auto, json, clf or regex.
func New(format, pattern string) (Parser, error) {
	switch strings.ToLower(format) {
	case "", "auto":
		return NewAutoParser(), nil
	case "json":
		return NewJSONParser(), nil
	case "clf":
		return NewCLFParser(), nil
	case "regex":
		return NewRegexParser(pattern)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ---------------------------------------------------------------------------
// JSON Parser
// ---------------------------------------------------------------------------

// JSONParser handles JSON-formatted log lines.
// Recognizes common field names: level, msg/message, timestamp/time/ts.
// Remaining fields are appended to the message as key=value pairs.
type JSONParser struct{}

func NewJSONParser() *JSONParser { return &JSONParser{} }

func (p *JSONParser) Parse(raw string, name string) ingest.Record {
	rec, _ := p.parse(raw, name)
	return rec
}

func (p *JSONParser) parse(raw, name string) (ingest.Record, bool) {
	rec := base(raw, name)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return rec, false // not valid JSON, return as-is
	}

	if v, ok := strField(data, "level", "severity", "lvl"); ok {
		rec.Level = normalizeLevel(v)
	}

	msg, hasMsg := strField(data, "message", "msg")

	if v, ok := strField(data, "timestamp", "time", "ts"); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.Time = t
		}
	}

	skip := map[string]bool{"level": true, "severity": true, "lvl": true, "message": true, "msg": true, "timestamp": true, "time": true, "ts": true}
	keys := make([]string, 0, len(data))
	for k := range data {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, data[k])
	}
	rec.Template = b.String()

	return rec, hasMsg
}

// ---------------------------------------------------------------------------
// CLF Parser (Common Log Format)
// ---------------------------------------------------------------------------

// CLFParser handles Apache/Nginx Common Log Format lines.
// Format: host ident authuser [date] "request" status bytes
type CLFParser struct {
	re *regexp.Regexp
}

func NewCLFParser() *CLFParser {
	return &CLFParser{
		re: regexp.MustCompile(`^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+)`),
	}
}

func (p *CLFParser) Parse(raw string, name string) ingest.Record {
	rec, _ := p.parse(raw, name)
	return rec
}

func (p *CLFParser) parse(raw, name string) (ingest.Record, bool) {
	rec := base(raw, name)

	matches := p.re.FindStringSubmatch(raw)
	if matches == nil {
		return rec, false
	}

	// Parse timestamp: 17/Feb/2026:12:00:00 +0000
	if t, err := time.Parse("02/Jan/2006:15:04:05 -0700", matches[4]); err == nil {
		rec.Time = t
	}

	// Determine level from HTTP status code.
	status := matches[6]
	rec.Level = statusToLevel(status)
	rec.Template = fmt.Sprintf("%s %s %s bytes=%s", matches[1], matches[5], status, matches[7])

	return rec, true
}

// statusToLevel maps HTTP status codes to log severity levels.
func statusToLevel(status string) string {
	if len(status) == 0 {
		return "INFO"
	}
	switch status[0] {
	case '5':
		return "ERROR"
	case '4':
		return "WARNING"
	default:
		return "INFO"
	}
}

// ---------------------------------------------------------------------------
// Regex Parser (user-defined patterns)
// ---------------------------------------------------------------------------

// RegexParser uses a user-supplied regex with named capture groups.
// Recognized groups: timestamp, level, message (all optional).
type RegexParser struct {
	re *regexp.Regexp
}

func NewRegexParser(pattern string) (*RegexParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return &RegexParser{re: re}, nil
}

func (p *RegexParser) Parse(raw string, name string) ingest.Record {
	rec := base(raw, name)

	matches := p.re.FindStringSubmatch(raw)
	if matches == nil {
		return rec
	}

	for i, group := range p.re.SubexpNames() {
		if i == 0 || group == "" {
			continue
		}
		val := matches[i]
		switch group {
		case "level":
			rec.Level = normalizeLevel(val)
		case "message":
			rec.Template = val
		case "timestamp":
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				rec.Time = t
			}
		}
	}

	return rec
}

// ---------------------------------------------------------------------------
// Auto Parser (format auto-detection)
// ---------------------------------------------------------------------------

// AutoParser tries parsers in order: JSON, then CLF, then keyword fallback.
type AutoParser struct {
	jsonParser *JSONParser
	clfParser  *CLFParser
}

func NewAutoParser() *AutoParser {
	return &AutoParser{
		jsonParser: NewJSONParser(),
		clfParser:  NewCLFParser(),
	}
}

func (p *AutoParser) Parse(raw string, name string) ingest.Record {
	trimmed := strings.TrimSpace(raw)

	// Try JSON first.
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if rec, ok := p.jsonParser.parse(raw, name); ok {
			return rec
		}
	}

	if rec, ok := p.clfParser.parse(raw, name); ok {
		return rec
	}

	// Fallback: keyword-based level detection.
	return keywordParse(raw, name)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// base returns a Record with defaults populated. Time is left zero so the
// ingesting logger stamps it.
func base(raw, name string) ingest.Record {
	return ingest.Record{
		Name:     name,
		Level:    "INFO",
		Template: raw,
	}
}

// keywordParse detects severity from keywords in the line.
func keywordParse(line, name string) ingest.Record {
	rec := base(line, name)
	upper := strings.ToUpper(line)

	switch {
	case strings.Contains(upper, "CRITICAL"), strings.Contains(upper, "FATAL"):
		rec.Level = "CRITICAL"
	case strings.Contains(upper, "ERROR"):
		rec.Level = "ERROR"
	case strings.Contains(upper, "WARN"):
		rec.Level = "WARNING"
	case strings.Contains(upper, "DEBUG"):
		rec.Level = "DEBUG"
	}

	return rec
}

// normalizeLevel normalizes common level strings to the ingest level names.
func normalizeLevel(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FATAL", "CRITICAL", "CRIT", "PANIC":
		return "CRITICAL"
	case "ERROR", "ERR":
		return "ERROR"
	case "WARN", "WARNING":
		return "WARNING"
	case "DEBUG", "TRACE":
		return "DEBUG"
	default:
		return "INFO"
	}
}

// strField returns the first matching string value from a map.
func strField(data map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			s := fmt.Sprintf("%v", v)
			if s != "" {
				return s, true
			}
		}
	}
	return "", false
}
