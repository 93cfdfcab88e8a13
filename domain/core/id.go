package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	CompoundID  ID
	SignatureID ID
	ContextID   ID
)

// String conversions for domain IDs
func (id RunID) String() string       { return ID(id).String() }
func (id CompoundID) String() string  { return ID(id).String() }
func (id SignatureID) String() string { return ID(id).String() }
func (id ContextID) String() string   { return ID(id).String() }

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run ID %q is not a UUID: %w", s, err)
	}
	return RunID(s), nil
}

// ParseCompoundID parses a string into CompoundID
func ParseCompoundID(s string) (CompoundID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("compound ID cannot be empty")
	}
	return CompoundID(s), nil
}
