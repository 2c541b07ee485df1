package identity

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator issues new account identifiers.
type IDGenerator interface {
	NewUserID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewUserID() string { return f() }

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewUserID() string { return uuid.NewString() }

// ULIDGenerator issues lexicographically sortable ULIDs.
type ULIDGenerator struct{}

func (ULIDGenerator) NewUserID() string { return ulid.Make().String() }

// NewIDGenerator returns the generator for format, "uuid" or "ulid".
func NewIDGenerator(format string) (IDGenerator, error) {
	switch format {
	case "", "uuid":
		return UUIDGenerator{}, nil
	case "ulid":
		return ULIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown user id format %q", format)
	}
}

// newProfileID returns a ULID; profile ids sort by creation time.
func newProfileID() string {
	return ulid.Make().String()
}
