// Package crypto provides the deterministic dual-keypair identity scheme
// used by every resonator, plus the ed25519 signing and verification that
// receipts rely on.
//
// A resonator's keys are never generated at random: both its ed25519 signing
// key and its secp256k1 (EVM-compatible) key are derived from the same
// 32-byte seed, itself derived from the resonator id via blake3's keyed
// derivation function. Recreating a Vault for the same id therefore always
// yields byte-identical keys and the same EVM address.
package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"

	"openibank/core/types"
)

// DeriveSeedContext is the blake3 derive_key context string used to turn a
// resonator id into a 32-byte key-derivation seed.
const DeriveSeedContext = "openibank v2 resonator identity seed"

// DeriveSeed computes the deterministic 32-byte seed for a resonator id.
func DeriveSeed(id types.ResonatorId) [32]byte {
	return blake3.DeriveKey(DeriveSeedContext, id.Bytes())
}

// Vault holds a resonator's derived keys. It never exposes raw private key
// bytes to callers; only signatures, public keys, and the EVM address are
// obtainable.
type Vault struct {
	id         types.ResonatorId
	edPriv     ed25519.PrivateKey
	edPub      ed25519.PublicKey
	ecdsaPriv  *ecdsa.PrivateKey
	evmAddress [20]byte
}

// NewVault deterministically derives a Vault for the given resonator id.
func NewVault(id types.ResonatorId) (*Vault, error) {
	seed := DeriveSeed(id)

	edPriv := ed25519.NewKeyFromSeed(seed[:])
	edPub := edPriv.Public().(ed25519.PublicKey)

	ecdsaPriv, err := ethcrypto.ToECDSA(seed[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: derive secp256k1 key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(ecdsaPriv.PublicKey)
	var evm [20]byte
	copy(evm[:], addr.Bytes())

	return &Vault{
		id:         id,
		edPriv:     edPriv,
		edPub:      edPub,
		ecdsaPriv:  ecdsaPriv,
		evmAddress: evm,
	}, nil
}

// ResonatorId returns the id this vault was derived from.
func (v *Vault) ResonatorId() types.ResonatorId { return v.id }

// Ed25519PublicKey returns the ed25519 public key used for receipt and
// WorldLine event signatures.
func (v *Vault) Ed25519PublicKey() ed25519.PublicKey {
	out := make(ed25519.PublicKey, len(v.edPub))
	copy(out, v.edPub)
	return out
}

// SignEd25519 signs msg with the resonator's ed25519 key.
func (v *Vault) SignEd25519(msg []byte) []byte {
	return ed25519.Sign(v.edPriv, msg)
}

// EVMAddress returns the keccak256-derived, EVM-compatible address of the
// resonator's secp256k1 public key.
func (v *Vault) EVMAddress() [20]byte { return v.evmAddress }

// SignSecp256k1 produces a 65-byte r||s||v signature (v in {27,28}) over the
// keccak256 hash of msg, compatible with EVM ecrecover.
func (v *Vault) SignSecp256k1(msg []byte) ([]byte, error) {
	digest := ethcrypto.Keccak256(msg)
	sig, err := ethcrypto.Sign(digest, v.ecdsaPriv)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign secp256k1: %w", err)
	}
	if len(sig) != 65 {
		return nil, errors.New("crypto: unexpected secp256k1 signature length")
	}
	out := append([]byte(nil), sig...)
	out[64] += 27 // go-ethereum returns recovery id 0/1; EVM convention wants 27/28.
	return out, nil
}

// VerifyEd25519 checks an ed25519 signature against a public key.
func VerifyEd25519(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}
