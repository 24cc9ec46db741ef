package issuer

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// reserveAttestationHash hashes a snapshot of the reserve cap and current
// supply for audit attachment to the receipt being built. The caller must
// hold iss.mu, since totalSupply is read here.
func (iss *Issuer) reserveAttestationHash() string {
	snapshot := struct {
		ReserveCap  uint64 `json:"reserve_cap"`
		TotalSupply uint64 `json:"total_supply"`
	}{
		ReserveCap:  iss.cfg.ReserveCap.Units(),
		TotalSupply: iss.totalSupply.Units(),
	}
	b, _ := json.Marshal(snapshot)
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// policySnapshotHash hashes the issuance policy in effect at receipt time.
func (iss *Issuer) policySnapshotHash() string {
	b, _ := json.Marshal(iss.cfg.Policy)
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
