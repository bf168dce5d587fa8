// FILE: logthrottle/src/internal/core/entry.go
package core

import "time"

// LogEntry is one line read from a tailed file
type LogEntry struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Group   string    `json:"group,omitempty"`
	Message string    `json:"message"`
	RawSize int64     `json:"-"`
}
