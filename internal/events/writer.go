// Package events appends a best-effort activity log next to the document.
// The log is a diagnostic aid, not part of the persisted document; a failed
// append never fails the mutation that produced it.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"time"
)

type Writer struct {
	Path string
	Now  func() time.Time
}

type Event struct {
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Author     string         `json:"author,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Append writes one JSON line to the log file, creating it if needed.
func (w Writer) Append(evtType, entityKind, entityID, author string, detail map[string]any) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	evt := Event{
		TS:         now().UTC().Format(time.RFC3339),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		Author:     author,
		Detail:     detail,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// Tail returns the last n events, oldest first. Unparseable lines are skipped.
func (w Writer) Tail(n int) ([]Event, error) {
	f, err := os.Open(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var all []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var evt Event
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			continue
		}
		all = append(all, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
