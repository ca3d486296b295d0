package domain

import (
	"strconv"
	"strings"

	dErrors "invitegate/pkg/domain-errors"
)

// TokenID identifies the non-fungible token bound to an invite. IDs start at 1;
// zero means "unassigned".
type TokenID uint64

func (t TokenID) String() string { return strconv.FormatUint(uint64(t), 10) }

func (t TokenID) IsZero() bool { return t == 0 }

// ParseTokenID parses a decimal token ID.
func ParseTokenID(s string) (TokenID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "token id must be a positive integer")
	}
	return TokenID(v), nil
}
