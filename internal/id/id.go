package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID generates a URL-safe identifier from UUIDv4 bytes.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewToken generates a wizard session token. Tokens use the same encoding
// as identifiers and carry the full 122 bits of UUIDv4 entropy.
func NewToken() (string, error) {
	return NewID()
}
