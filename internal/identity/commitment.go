// Package identity derives the hashed identity commitments stored by the ledger.
// Raw identity strings (typically email addresses) never leave this package's callers.
package identity

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "invitegate/pkg/domain-errors"
)

// Commitment is keccak256(utf8(identity)).
type Commitment [32]byte

// Commit hashes a raw identity. Identities are taken byte-for-byte; callers
// that want case folding must normalize first.
func Commit(raw string) Commitment {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(raw))
	var c Commitment
	h.Sum(c[:0])
	return c
}

// Parse decodes a 0x-prefixed 32-byte hex commitment.
func Parse(s string) (Commitment, error) {
	var c Commitment
	body, ok := strings.CutPrefix(strings.TrimSpace(s), "0x")
	if !ok || len(body) != 64 {
		return c, dErrors.New(dErrors.CodeValidation, "commitment must be 0x-prefixed 32-byte hex")
	}
	if _, err := hex.Decode(c[:], []byte(body)); err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeValidation, "commitment must be hex")
	}
	return c, nil
}

// FromBytes copies a 32-byte slice, as read back from storage.
func FromBytes(b []byte) (Commitment, error) {
	var c Commitment
	if len(b) != len(c) {
		return c, dErrors.New(dErrors.CodeValidation, "commitment must be 32 bytes")
	}
	copy(c[:], b)
	return c, nil
}

func (c Commitment) Hex() string    { return "0x" + hex.EncodeToString(c[:]) }
func (c Commitment) String() string { return c.Hex() }
func (c Commitment) IsZero() bool   { return c == Commitment{} }

func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *Commitment) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
