package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "invitegate/pkg/domain-errors"
)

// Address is a 20-byte account address. It is rendered EIP-55 checksummed and
// parsed case-insensitively.
type Address common.Address

// ZeroAddress is never a valid recipient or binding target.
var ZeroAddress Address

// ParseAddress validates a 0x-prefixed hex address at a trust boundary.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, dErrors.New(dErrors.CodeValidation, "address must be 0x-prefixed hex")
	}
	if !common.IsHexAddress(s) {
		return Address{}, dErrors.New(dErrors.CodeValidation, "address must be 20 bytes of hex")
	}
	addr := Address(common.HexToAddress(s))
	if addr.IsZero() {
		return Address{}, dErrors.New(dErrors.CodeValidation, "zero address is not allowed")
	}
	return addr, nil
}

// MustParseAddress is for tests and constants.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) Hex() string    { return common.Address(a).Hex() }
func (a Address) String() string { return a.Hex() }
func (a Address) Bytes() []byte  { return common.Address(a).Bytes() }
func (a Address) IsZero() bool   { return a == ZeroAddress }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
