// Package idgen produces the identifiers used across the store.
//
// Entity ids are UUIDv7 strings: their canonical text form sorts in creation
// order, which chat pagination relies on.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

type Generator interface {
	// NewID returns a time-ordered identifier.
	NewID() string
	// NewToken returns an opaque random token.
	NewToken() string
	// NewUsername returns a collision-resistant generated username.
	NewUsername() string
}

type UUIDGenerator struct{}

func New() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (UUIDGenerator) NewToken() string {
	return uuid.NewString()
}

func (UUIDGenerator) NewUsername() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
