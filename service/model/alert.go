package model

import (
	"strings"
	"time"
)

const DefaultIdentifier = "jalert"

// Alert is what a triggering record is turned into before it is handed to
// the exporters.
type Alert struct {
	Identifier string    `json:"identifier"`
	Message    string    `json:"message"`
	Cursor     string    `json:"cursor,omitempty"`
	Time       time.Time `json:"timestamp"`
}

// NewAlert decodes raw journal values. Invalid UTF-8 is replaced rather
// than rejected.
func NewAlert(identifier, message []byte, cursor string, at time.Time) *Alert {
	alert := &Alert{
		Identifier: strings.ToValidUTF8(string(identifier), "�"),
		Message:    strings.ToValidUTF8(string(message), "�"),
		Cursor:     cursor,
		Time:       at,
	}
	if alert.Identifier == "" {
		alert.Identifier = DefaultIdentifier
	}
	return alert
}

// Summary returns at most the first n lines of the message.
// Coredumps in particular carry very long messages.
func (a *Alert) Summary(n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.SplitN(a.Message, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
