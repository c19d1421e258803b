package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bacembenakkari/TalentCloud/internal/events"
)

type record struct {
	Topic    string
	Key      string
	Envelope *events.Envelope
}

// logLine is the subset of a "not published" log entry that replay needs.
// Its payload is the envelope JSON as a string.
type logLine struct {
	Payload json.RawMessage `json:"payload"`
	Topic   string          `json:"topic"`
	Key     string          `json:"key"`
}

// parseLine accepts either a bare envelope or a JSON log entry carrying
// one. Blank lines yield nil.
func parseLine(line []byte, fallback events.EventType) (*record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var entry logLine
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, fmt.Errorf("not JSON: %w", err)
	}

	raw := line
	r := &record{}
	if len(entry.Payload) > 0 && entry.Payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(entry.Payload, &inner); err != nil {
			return nil, fmt.Errorf("bad payload field: %w", err)
		}
		raw = []byte(inner)
		r.Topic = entry.Topic
		r.Key = entry.Key
	}

	env, err := events.Decode(raw, fallback)
	if err != nil {
		return nil, err
	}
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	r.Envelope = env

	if r.Topic == "" || r.Key == "" {
		routed, err := events.Route(env)
		if err != nil {
			return nil, err
		}
		if r.Topic == "" {
			r.Topic = routed.Topic
		}
		if r.Key == "" {
			r.Key = routed.Key
		}
	}

	return r, nil
}
