// Package netting implements multilateral settlement minimization: a set of
// gross bilateral obligations is collapsed into the smallest set of net
// settlement legs that preserves every participant's net position.
package netting

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"lukechampine.com/blake3"

	"openibank/core/errs"
	"openibank/core/types"
)

// GrossPosition is one input obligation: from owes to, amount, in asset.
type GrossPosition struct {
	From   types.ResonatorId `json:"from"`
	To     types.ResonatorId `json:"to"`
	Amount types.Amount      `json:"amount"`
	Asset  types.AssetId     `json:"asset"`
}

// Leg is one emitted settlement instruction.
type Leg struct {
	From   types.ResonatorId
	To     types.ResonatorId
	Amount types.Amount
	Asset  types.AssetId
}

// ConservationProof attests that the netting run conserved value: the net
// sum across all participants is zero, hashed over the canonical
// serialization of the input positions.
type ConservationProof struct {
	PositionsHash string
	NetSum        int64
	Verified      bool
}

// Result is the output of a netting run for a single asset.
type Result struct {
	Legs       []Leg
	Efficiency float64
	Proof      ConservationProof
}

// Net computes the minimized settlement for positions, all of which must
// share the same asset (callers should partition by asset before calling,
// since net positions are not fungible across assets).
func Net(positions []GrossPosition) (Result, error) {
	if len(positions) == 0 {
		return Result{Proof: ConservationProof{Verified: true}}, nil
	}
	asset := positions[0].Asset
	for _, p := range positions {
		if p.Asset != asset {
			return Result{}, errs.NewInvalidParameter("asset", "netting requires a single shared asset per run")
		}
	}

	net := make(map[types.ResonatorId]int64)
	order := make([]types.ResonatorId, 0)
	touch := func(id types.ResonatorId) {
		if _, ok := net[id]; !ok {
			order = append(order, id)
		}
	}
	for _, p := range positions {
		units := int64(p.Amount.Units())
		touch(p.From)
		touch(p.To)
		net[p.From] -= units
		net[p.To] += units
	}

	var sum int64
	for _, v := range net {
		sum += v
	}
	proof, err := buildProof(positions, sum)
	if err != nil {
		return Result{}, err
	}
	if sum != 0 {
		return Result{Proof: proof}, errs.ErrConservationViolation
	}

	type balance struct {
		id        types.ResonatorId
		remaining uint64
	}
	var payers, receivers []balance
	for _, id := range order {
		v := net[id]
		switch {
		case v < 0:
			payers = append(payers, balance{id: id, remaining: uint64(-v)})
		case v > 0:
			receivers = append(receivers, balance{id: id, remaining: uint64(v)})
		}
	}
	sort.Slice(payers, func(i, j int) bool { return payers[i].id < payers[j].id })
	sort.Slice(receivers, func(i, j int) bool { return receivers[i].id < receivers[j].id })

	var legs []Leg
	i, j := 0, 0
	for i < len(payers) && j < len(receivers) {
		amount := payers[i].remaining
		if receivers[j].remaining < amount {
			amount = receivers[j].remaining
		}
		if amount > 0 {
			legs = append(legs, Leg{
				From:   payers[i].id,
				To:     receivers[j].id,
				Amount: types.NewAmount(amount),
				Asset:  asset,
			})
		}
		payers[i].remaining -= amount
		receivers[j].remaining -= amount
		if payers[i].remaining == 0 {
			i++
		}
		if receivers[j].remaining == 0 {
			j++
		}
	}

	efficiency := 0.0
	if len(positions) > 0 {
		efficiency = 1 - float64(len(legs))/float64(len(positions))
	}

	return Result{Legs: legs, Efficiency: efficiency, Proof: proof}, nil
}

// buildProof hashes the canonical (sorted by from, then to, then amount)
// serialization of the input positions, independent of the caller's original
// ordering.
func buildProof(positions []GrossPosition, netSum int64) (ConservationProof, error) {
	type hashablePosition struct {
		From   types.ResonatorId `json:"from"`
		To     types.ResonatorId `json:"to"`
		Amount uint64            `json:"amount"`
		Asset  types.AssetId     `json:"asset"`
	}
	sorted := make([]hashablePosition, len(positions))
	for i, p := range positions {
		sorted[i] = hashablePosition{From: p.From, To: p.To, Amount: p.Amount.Units(), Asset: p.Asset}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		if sorted[i].To != sorted[j].To {
			return sorted[i].To < sorted[j].To
		}
		return sorted[i].Amount < sorted[j].Amount
	})
	b, err := json.Marshal(sorted)
	if err != nil {
		return ConservationProof{}, err
	}
	sum := blake3.Sum256(b)
	return ConservationProof{
		PositionsHash: hex.EncodeToString(sum[:]),
		NetSum:        netSum,
		Verified:      netSum == 0,
	}, nil
}
