package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// The server emits ISO 8601 timestamps in two shapes depending on the code
// path: with fractional seconds and without. Both must parse; anything else
// is a hard parse failure that aborts the whole batch.
const (
	layoutFractional = "2006-01-02T15:04:05.000Z07:00"
	layoutWhole      = "2006-01-02T15:04:05Z07:00"
)

// Timestamp is a time.Time with the tolerant two-format JSON decoding the
// sync protocol requires. It always marshals as whole-second UTC, which is
// what the server stores.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(layoutWhole))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseSyncTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseSyncTime tries the fractional-second layout first, then the
// whole-second one.
func ParseSyncTime(s string) (time.Time, error) {
	if t, err := time.Parse(layoutFractional, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(layoutWhole, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatSyncTime renders t the way requests expect it (whole-second UTC).
func FormatSyncTime(t time.Time) string {
	return t.UTC().Format(layoutWhole)
}
