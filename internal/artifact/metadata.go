// Package artifact builds token metadata documents and their content identifiers.
// Rendering and pinning happen elsewhere; the ledger only stores opaque locators.
package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const placeholderScheme = "pending://"

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the ERC-721 style document served for each token.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// NewMetadata describes the invite identified by code. image is the artifact
// locator; placeholders render as an empty image.
func NewMetadata(ecosystem, code, image string) Metadata {
	if IsPlaceholder(image) {
		image = ""
	}
	return Metadata{
		Name:        ecosystem + " Invite NFT",
		Description: "Exclusive invite code: " + code,
		Image:       image,
		Attributes: []Attribute{
			{TraitType: "Invite Code", Value: code},
			{TraitType: "Type", Value: "Invite Pass"},
		},
	}
}

// Canonical returns the document bytes the CID is computed over. Field order is
// fixed by the struct so equal documents always encode identically.
func (m Metadata) Canonical() ([]byte, error) {
	return json.Marshal(m)
}

// CID returns the CIDv1 (raw codec, sha2-256) of the canonical document.
func (m Metadata) CID() (cid.Cid, error) {
	raw, err := m.Canonical()
	if err != nil {
		return cid.Undef, fmt.Errorf("encode metadata: %w", err)
	}
	return ContentID(raw)
}

// ContentID returns the CIDv1 (raw codec, sha2-256) of arbitrary bytes.
func ContentID(raw []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(raw, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash metadata: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Placeholder is the deferred locator assigned to batch-issued invites until
// their artwork is attached.
func Placeholder(code string) string {
	return placeholderScheme + code
}

func IsPlaceholder(locator string) bool {
	return strings.HasPrefix(locator, placeholderScheme)
}
