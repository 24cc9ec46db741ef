package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix selects which bech32 human-readable part a display address
// is encoded under. Resonators and the issuer's reserve account use distinct
// prefixes so a glance at an address string tells you which namespace it
// belongs to.
type AddressPrefix string

const (
	ResonatorPrefix AddressPrefix = "oib"
	ReservePrefix   AddressPrefix = "oibr"
)

// Address is the bech32 textual encoding of a resonator's 20-byte derived
// EVM address. It exists purely for display and transcription: transfers and
// lookups inside the core always key off types.ResonatorId, never Address.
type Address struct {
	prefix AddressPrefix
	bytes  [20]byte
}

// NewAddress builds an Address from a prefix and the raw 20-byte payload.
func NewAddress(prefix AddressPrefix, raw [20]byte) Address {
	return Address{prefix: prefix, bytes: raw}
}

// AddressFromVault derives the display Address for a vault's EVM address
// under the given prefix.
func AddressFromVault(v *Vault, prefix AddressPrefix) Address {
	return NewAddress(prefix, v.EVMAddress())
}

// String renders the address as a bech32 string, e.g. "oib1...".
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		// ConvertBits only fails on malformed bit widths, never on input
		// data; a 20-byte array can never trigger this.
		panic(fmt.Sprintf("crypto: bech32 convert bits: %v", err))
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(fmt.Sprintf("crypto: bech32 encode: %v", err))
	}
	return encoded
}

// Bytes returns the raw 20-byte payload.
func (a Address) Bytes() [20]byte { return a.bytes }

// Prefix returns the address's human-readable part.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// DecodeAddress parses a bech32 address string produced by Address.String.
func DecodeAddress(addrStr string) (Address, error) {
	hrp, data, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: decode address: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: bech32 convert bits: %w", err)
	}
	if len(raw) != 20 {
		return Address{}, errors.New("crypto: decoded address payload is not 20 bytes")
	}
	var out [20]byte
	copy(out[:], raw)
	return Address{prefix: AddressPrefix(hrp), bytes: out}, nil
}
