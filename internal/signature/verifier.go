// Package signature recovers wallet signers from personal-message signatures over
// the ledger's ownership challenge.
package signature

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
)

// Scheme selects how the challenge binds the address.
type Scheme string

const (
	// SchemeLegacy hashes the checksummed address as text appended to the prefix.
	SchemeLegacy Scheme = "legacy"
	// SchemePacked hashes the prefix followed by the raw 20 address bytes
	// (abi.encodePacked(string, address)).
	SchemePacked Scheme = "packed"
)

const (
	challengePrefix = "Verify wallet for "
	signatureLength = 65
)

// ParseScheme validates a configured or requested scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeLegacy:
		return SchemeLegacy, nil
	case SchemePacked:
		return SchemePacked, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown challenge scheme %q", s))
	}
}

// Verifier is stateless apart from its configuration and safe for concurrent use.
type Verifier struct {
	ecosystem string
	schemes   []Scheme
}

// NewVerifier accepts schemes in the order given. With no schemes only packed is accepted.
func NewVerifier(ecosystem string, schemes ...Scheme) (*Verifier, error) {
	if strings.TrimSpace(ecosystem) == "" {
		return nil, fmt.Errorf("ecosystem name is required")
	}
	if len(schemes) == 0 {
		schemes = []Scheme{SchemePacked}
	}
	seen := make(map[Scheme]bool, len(schemes))
	accepted := make([]Scheme, 0, len(schemes))
	for _, s := range schemes {
		if _, err := ParseScheme(string(s)); err != nil {
			return nil, err
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		accepted = append(accepted, s)
	}
	return &Verifier{ecosystem: ecosystem, schemes: accepted}, nil
}

// Schemes returns the accepted schemes, preferred first.
func (v *Verifier) Schemes() []Scheme {
	return append([]Scheme(nil), v.schemes...)
}

// Accepts reports whether scheme is enabled.
func (v *Verifier) Accepts(scheme Scheme) bool {
	for _, s := range v.schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Message returns the human readable challenge text.
func (v *Verifier) Message() string {
	return challengePrefix + v.ecosystem
}

// Challenge returns the 32-byte digest a wallet must personal_sign to prove
// ownership of addr.
func (v *Verifier) Challenge(scheme Scheme, addr domain.Address) ([]byte, error) {
	switch scheme {
	case SchemeLegacy:
		return crypto.Keccak256([]byte(v.Message() + addr.Hex())), nil
	case SchemePacked:
		return crypto.Keccak256([]byte(v.Message()), addr.Bytes()), nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown challenge scheme %q", scheme))
	}
}

// RecoverSigner returns the address that signed the challenge for addr under scheme.
func (v *Verifier) RecoverSigner(scheme Scheme, addr domain.Address, sig []byte) (domain.Address, error) {
	digest, err := v.Challenge(scheme, addr)
	if err != nil {
		return domain.Address{}, err
	}
	return recoverAddress(accounts.TextHash(digest), sig)
}

// Verify succeeds when sig was produced by addr over the challenge of any accepted
// scheme, and reports which scheme matched.
func (v *Verifier) Verify(addr domain.Address, sig []byte) (Scheme, error) {
	if len(sig) != signatureLength {
		return "", dErrors.New(dErrors.CodeInvalidSignature, "signature must be 65 bytes")
	}
	for _, scheme := range v.schemes {
		signer, err := v.RecoverSigner(scheme, addr, sig)
		if err == nil && signer == addr {
			return scheme, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidSignature, "signature does not match address")
}

func recoverAddress(hash, sig []byte) (domain.Address, error) {
	if len(sig) != signatureLength {
		return domain.Address{}, dErrors.New(dErrors.CodeInvalidSignature, "signature must be 65 bytes")
	}
	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	switch normalized[64] {
	case 0, 1:
	case 27, 28:
		normalized[64] -= 27
	default:
		return domain.Address{}, dErrors.New(dErrors.CodeInvalidSignature, "signature recovery id must be 0, 1, 27 or 28")
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return domain.Address{}, dErrors.Wrap(err, dErrors.CodeInvalidSignature, "signature recovery failed")
	}
	return domain.Address(crypto.PubkeyToAddress(*pub)), nil
}

// Decode parses a 0x-prefixed hex signature.
func Decode(s string) ([]byte, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "signature must be 0x-prefixed hex")
	}
	if len(sig) != signatureLength {
		return nil, dErrors.New(dErrors.CodeValidation, "signature must be 65 bytes")
	}
	return sig, nil
}

// SignChallenge personal_signs digest with key and returns [R || S || V] with V in
// {27, 28}, the form wallets produce. Used by clients and tests.
func SignChallenge(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// AddressOf derives the wallet address of key.
func AddressOf(key *ecdsa.PrivateKey) domain.Address {
	return domain.Address(crypto.PubkeyToAddress(key.PublicKey))
}

// Encode renders a signature as 0x-prefixed hex.
func Encode(sig []byte) string {
	return hexutil.Encode(sig)
}

