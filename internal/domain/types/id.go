package types

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// ID is a process-unique 128-bit random identifier.
type ID uuid.UUID

// Nil is the zero ID.
var Nil ID

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.New())
}

// NameID derives a stable ID from a name, so independent processes agree on it.
func NameID(name string) ID {
	return ID(uuid.NewSHA1(functionNamespace, []byte(name)))
}

var functionNamespace = uuid.MustParse("6f2c6a4e-0d8b-4b5e-9a51-3f1f8e2a7c10")

// ParseID parses the textual form produced by String.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

func (id ID) IsNil() bool {
	return id == Nil
}

// Compare orders IDs byte-wise.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := ParseID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
