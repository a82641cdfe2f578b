package task

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FormatVersion identifies the serialization format. The header record makes
// each blob self-describing so future versions can migrate on load.
const FormatVersion = "taskloop/1"

// header is the first record of a serialized list.
type header struct {
	Format string `json:"format"`
	NextID int    `json:"next_id"`
}

// record mirrors one serialized task line. Timestamps are raw so a mangled
// value degrades to zero instead of discarding the whole record.
type record struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Status    string          `json:"status"`
	Created   json.RawMessage `json:"created,omitempty"`
	Completed json.RawMessage `json:"completed,omitempty"`
	After     string          `json:"after,omitempty"`
}

// Encode serializes a list as line-delimited JSON: one header record, then
// one record per task in order.
func Encode(l *List) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	if err := enc.Encode(header{Format: FormatVersion, NextID: l.NextID}); err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	for _, t := range l.Tasks {
		r := record{
			ID:      t.ID,
			Content: t.Content,
			Status:  string(t.Status),
			After:   t.After,
		}
		if !t.Created.IsZero() {
			r.Created = timeRaw(t.Created)
		}
		if !t.Completed.IsZero() {
			r.Completed = timeRaw(t.Completed)
		}
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding task %s: %w", t.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode deserializes a blob back into a List. The load contract is
// deliberately forgiving, because the backing store offers no transactions
// and a torn or hand-edited blob must never take the whole list down:
//
//   - lines that are not JSON objects are skipped
//   - records without an id are skipped
//   - an unknown status falls back to pending
//   - an unparsable timestamp falls back to the zero time
//   - a missing header derives the counter from the highest id seen
func Decode(data []byte) *List {
	l := NewList()
	sawHeader := false
	maxID := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !sawHeader {
			var h header
			if err := json.Unmarshal([]byte(line), &h); err == nil && h.Format != "" {
				sawHeader = true
				if h.NextID > 0 {
					l.NextID = h.NextID
				}
				continue
			}
		}

		var r record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue // not a record; skip
		}
		if r.ID == "" {
			continue // a task without an id is unaddressable; skip
		}

		t := Task{
			ID:        r.ID,
			Content:   r.Content,
			Status:    parseStatus(r.Status),
			Created:   parseTime(r.Created),
			Completed: parseTime(r.Completed),
			After:     r.After,
		}
		if t.Status != StatusCompleted {
			// Invariant: Completed is non-zero iff status is completed.
			t.Completed = time.Time{}
		}
		l.Tasks = append(l.Tasks, t)

		if n, ok := ParseIDNumber(r.ID); ok && n > maxID {
			maxID = n
		}
	}

	if !sawHeader || l.NextID <= maxID {
		l.NextID = maxID + 1
	}
	return l
}

// parseStatus maps a serialized status onto the closed set, defaulting to
// pending for anything unrecognized.
func parseStatus(s string) Status {
	if Status(s) == StatusCompleted {
		return StatusCompleted
	}
	return StatusPending
}

// parseTime decodes a raw timestamp value: RFC 3339 string or unix seconds.
// Anything else degrades to the zero time.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
		return time.Time{}
	}
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

// timeRaw encodes a timestamp as an RFC 3339 JSON string.
func timeRaw(t time.Time) json.RawMessage {
	b, _ := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	return b
}
