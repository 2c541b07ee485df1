package profile

import "fmt"

// Status is the lifecycle state of a profile.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusInactive
	StatusSuspended
)

var statusNames = map[Status]string{
	StatusActive:    "active",
	StatusInactive:  "inactive",
	StatusSuspended: "suspended",
}

// ParseStatus converts a wire literal to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	case "suspended":
		return StatusSuspended, nil
	default:
		return 0, fmt.Errorf("unknown profile status %q", s)
	}
}

// String returns the wire literal.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransition reports whether a profile may move from s to next.
// States form a chain active <-> inactive <-> suspended; staying put is allowed.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	switch {
	case s == next:
		return true
	case s == StatusActive:
		return next == StatusInactive
	case s == StatusInactive:
		return next == StatusActive || next == StatusSuspended
	default:
		return next == StatusInactive
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid profile status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
