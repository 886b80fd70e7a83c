package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Record is a host logging call before rendering.
type Record struct {
	Time     time.Time
	Level    string
	Name     string
	Template string
	Args     []any
}

// Render interpolates Args into Template. A record without arguments renders
// as the template verbatim. Rendering never fails: bad verbs, mismatched
// arguments and panicking Stringers yield the raw template plus a marker.
func (r Record) Render() (msg string) {
	if len(r.Args) == 0 {
		return r.Template
	}
	defer func() {
		if p := recover(); p != nil {
			msg = fallback(r.Template, fmt.Sprintf("panic: %v", p))
		}
	}()
	msg = fmt.Sprintf(r.Template, r.Args...)
	if strings.Contains(msg, "%!") && !strings.Contains(r.Template, "%!") {
		return fallback(r.Template, fmt.Sprint(r.Args...))
	}
	return msg
}

func fallback(template, detail string) string {
	return template + " [format error: " + detail + "]"
}
