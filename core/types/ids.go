// Package types holds the primitive value types shared across the core:
// typed identifiers, fixed-point amounts, and asset identifiers.
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDKind names the identifier namespaces used throughout the core. Every
// opaque id carries one of these stable textual prefixes.
type IDKind string

const (
	KindResonator  IDKind = "res"
	KindCommitment IDKind = "cmmt"
	KindWorldLine  IDKind = "wll"
	KindLedgerEntry IDKind = "entry"
	KindReceipt    IDKind = "receipt"
	KindPermit     IDKind = "permit"
	KindEscrow     IDKind = "escrow"
	KindInvoice    IDKind = "invoice"
)

// NewUUIDID mints a fresh id in the given namespace backed by a random UUID.
// Used where uniqueness across time, not ordering, is required.
func NewUUIDID(kind IDKind) string {
	return fmt.Sprintf("%s_%s", kind, uuid.NewString())
}

// NewULIDID mints a fresh id in the given namespace backed by a ULID, whose
// body is lexicographically time-ordered. Used for WorldLine event ids where
// strict monotonic order within a run matters.
func NewULIDID(kind IDKind, entropy *ulid.MonotonicEntropy) string {
	id := ulid.MustNew(ulid.Now(), entropy)
	return fmt.Sprintf("%s_%s", kind, strings.ToLower(id.String()))
}

// HasPrefix reports whether id carries the expected namespace prefix.
func HasPrefix(id string, kind IDKind) bool {
	return strings.HasPrefix(id, string(kind)+"_")
}
