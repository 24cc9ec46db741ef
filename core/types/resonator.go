package types

// ResonatorId names a bank actor: an agent, the issuer, or an escrow vault.
// It is an opaque string chosen by the caller (e.g. "buyer-1", "issuer",
// "escrow_<uuid>") and is the seed from which the resonator's deterministic
// keys are derived — see crypto.Vault.
type ResonatorId string

func (r ResonatorId) String() string { return string(r) }

func (r ResonatorId) Bytes() []byte { return []byte(r) }
