package core

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// AnchorID is a deterministic, content-derived identifier for an Anchor:
// `sca_` followed by 16 lowercase hex characters, a 64-bit non-cryptographic
// hash of dataset||"\0"||column_name||"\0"||fingerprint_string.
type AnchorID string

const anchorIDPrefix = "sca_"

// NewAnchorID computes the anchor id from its three defining inputs. It is a
// pure function: the same (dataset, columnName, fingerprint) always yields
// the same id.
func NewAnchorID(dataset, columnName, fingerprint string) AnchorID {
	h := xxhash.New()
	_, _ = h.WriteString(dataset)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(columnName)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(fingerprint)
	return AnchorID(fmt.Sprintf("%s%016x", anchorIDPrefix, h.Sum64()))
}

// String returns the string representation.
func (a AnchorID) String() string {
	return string(a)
}

// IsEmpty reports whether the id was never set.
func (a AnchorID) IsEmpty() bool {
	return a == ""
}
