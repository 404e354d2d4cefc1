package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	jerror "jalert/error"
)

const (
	FieldCursor            = "__CURSOR"
	FieldRealtimeTimestamp = "__REALTIME_TIMESTAMP"
	FieldMessage           = "MESSAGE"
	FieldSyslogIdentifier  = "SYSLOG_IDENTIFIER"
)

// # JournalEntry
//
// JournalEntry is one line of `journalctl --output=json`.
// Field values stay raw until they are fetched:
//   - a JSON string is the field value
//   - an array of numbers is a binary value, one byte per number
//   - an array of values is a field repeated in the entry, the first one wins
//   - null is a value journald suppressed for its size, fetching it fails
type JournalEntry struct {
	fields map[string]json.RawMessage
}

func ParseJournalEntry(line string) (*JournalEntry, error) {
	entry := new(JournalEntry)
	err := json.Unmarshal([]byte(line), &entry.fields)
	if err != nil {
		return nil, jerror.JalertGeneralError{
			Code:   jerror.InputError,
			Origin: err,
			Msg:    "error while parse journal entry",
		}
	}
	if entry.fields == nil {
		return nil, jerror.JalertGeneralError{
			Code:   jerror.InputError,
			Origin: fmt.Errorf("journal entry is null"),
			Msg:    "error while parse journal entry",
		}
	}
	return entry, nil
}

// NewJournalEntry builds an entry from plain string fields.
func NewJournalEntry(fields map[string]string) *JournalEntry {
	entry := &JournalEntry{fields: make(map[string]json.RawMessage, len(fields))}
	for name, value := range fields {
		raw, _ := json.Marshal(value)
		entry.fields[name] = raw
	}
	return entry
}

func (e *JournalEntry) FetchField(name string) ([]byte, bool, error) {
	raw, ok := e.fields[name]
	if !ok {
		return nil, false, nil
	}
	value, err := decodeFieldValue(raw)
	if err != nil {
		return nil, false, jerror.JalertGeneralError{
			Code:   jerror.InputError,
			Origin: err,
			Msg:    fmt.Sprintf("error while decode journal field %s", name),
		}
	}
	return value, true, nil
}

// Cursor returns the journal cursor of the entry, or "" if it has none.
func (e *JournalEntry) Cursor() string {
	value, ok, err := e.FetchField(FieldCursor)
	if !ok || err != nil {
		return ""
	}
	return string(value)
}

// Time returns the realtime timestamp of the entry, or the zero time.
func (e *JournalEntry) Time() time.Time {
	value, ok, err := e.FetchField(FieldRealtimeTimestamp)
	if !ok || err != nil {
		return time.Time{}
	}
	usec, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(usec)
}

func decodeFieldValue(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty field value")
	}
	switch raw[0] {
	case 'n':
		return nil, fmt.Errorf("field value suppressed by journald")
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return []byte{}, nil
		}
		first := bytes.TrimSpace(elems[0])
		if len(first) > 0 && (first[0] == '"' || first[0] == '[' || first[0] == 'n') {
			return decodeFieldValue(first)
		}
		var octets []int
		if err := json.Unmarshal(raw, &octets); err != nil {
			return nil, fmt.Errorf("invalid binary field value: %w", err)
		}
		value := make([]byte, len(octets))
		for i, o := range octets {
			if o < 0 || o > 0xff {
				return nil, fmt.Errorf("invalid byte %d in binary field value", o)
			}
			value[i] = byte(o)
		}
		return value, nil
	}
	return nil, fmt.Errorf("unexpected field value %s", raw)
}
