package models

import "time"

// LogLine represents a single log entry from Loki.
type LogLine struct {
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels"`
	Level     string            `json:"level"`
}
