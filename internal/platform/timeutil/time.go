// Package timeutil renders API timestamps with a fixed precision in every
// wire format the API speaks.
package timeutil

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// RFC3339Millis is the API timestamp layout: UTC with exactly three
// fractional digits, e.g. "2025-03-10T09:15:00.000Z".
const RFC3339Millis = "2006-01-02T15:04:05.000Z"

// RFC3339Micros is the log timestamp layout.
const RFC3339Micros = "2006-01-02T15:04:05.000000Z"

// Time is a time.Time that encodes as an RFC3339Millis string in JSON and
// as a CBOR text string, so profile payloads read the same in both formats.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// FromPtr wraps t, keeping nil as nil for optional timestamps.
func FromPtr(t *time.Time) *Time {
	if t == nil {
		return nil
	}
	out := NewTime(*t)
	return &out
}

// String returns the RFC3339Millis form in UTC.
func (t Time) String() string {
	return t.UTC().Format(RFC3339Millis)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts any RFC 3339 timestamp. null leaves t unchanged.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return t.parse(s)
}

func (t Time) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(t.String())
}

func (t *Time) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.parse(s)
}

func (t *Time) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
