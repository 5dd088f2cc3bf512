package core

import (
	"strings"

	"github.com/google/uuid"
)

// ID is a generic time-ordered identifier, used for Evidence record ids.
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered
// generation, falling back to v4 if uuid.NewV7 returns an error.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation.
func (id ID) String() string {
	return string(id)
}

// IsEmpty reports whether the ID was never set.
func (id ID) IsEmpty() bool {
	return strings.TrimSpace(string(id)) == ""
}
