package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// looseString decodes from a JSON string or number. Older releases used
// millisecond timestamps as ids.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*s = looseString(n.String())
	return nil
}

// looseTime decodes from an RFC 3339 string or a number of milliseconds
// since the epoch.
type looseTime struct{ time.Time }

func (t *looseTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Time)
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("time must be a string or a number: %w", err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// UnmarshalJSON accepts notes written by older releases: numeric ids and a
// millisecond "created" field in place of createdAt.
func (n *Note) UnmarshalJSON(data []byte) error {
	type plain Note
	var aux struct {
		plain
		ID        looseString `json:"id"`
		CreatedAt looseTime   `json:"createdAt"`
		Created   looseTime   `json:"created"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*n = Note(aux.plain)
	n.ID = string(aux.ID)
	n.CreatedAt = aux.CreatedAt.Time
	if n.CreatedAt.IsZero() {
		n.CreatedAt = aux.Created.Time
	}
	return nil
}
