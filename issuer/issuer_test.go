package issuer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/crypto"
	"openibank/gate"
	"openibank/ledger"
	"openibank/worldline"
)

func newTestIssuer(t *testing.T, reserveCap uint64) (*Issuer, *ledger.Ledger, *worldline.WorldLine) {
	t.Helper()
	issuerID := types.ResonatorId("issuer")
	vault, err := crypto.NewVault(issuerID)
	require.NoError(t, err)

	l := ledger.New()
	wl := worldline.New(nil)
	g := gate.New(wl, gate.DefaultStages(0), 0, 0)

	cfg := Config{
		IssuerID:   issuerID,
		AssetID:    types.IUSD,
		Symbol:     "IUSD",
		Decimals:   2,
		ReserveCap: types.NewAmount(reserveCap),
		Policy: Policy{
			MintingEnabled: true,
			BurningEnabled: true,
			MaxSingleMint:  types.NewAmount(reserveCap),
			MaxSingleBurn:  types.NewAmount(reserveCap),
		},
	}
	return New(cfg, vault, l, g), l, wl
}

func TestMintWithinCapProducesVerifiableReceipt(t *testing.T) {
	iss, l, _ := newTestIssuer(t, 1_000_000)
	buyer := types.ResonatorId("buyer")

	r, proof, err := iss.Mint("run-1", MintIntent{To: buyer, Amount: types.NewAmount(100_000)})
	require.NoError(t, err)
	require.True(t, r.Verify())
	require.NotEmpty(t, proof.WorldLineEventID)
	require.Equal(t, types.NewAmount(100_000), l.Balance(buyer, types.IUSD))
	require.Equal(t, types.NewAmount(100_000), iss.TotalSupply())
}

func TestMintExceedingReserveCapRejected(t *testing.T) {
	iss, l, _ := newTestIssuer(t, 1000)
	// Lift the single-mint cap so the reserve cap is the check that trips.
	iss.cfg.Policy.MaxSingleMint = types.NewAmount(5000)
	buyer := types.ResonatorId("buyer")

	_, _, err := iss.Mint("run-1", MintIntent{To: buyer, Amount: types.NewAmount(2000)})
	require.ErrorIs(t, err, errs.ErrReserveExceeded)
	require.True(t, l.Balance(buyer, types.IUSD).IsZero())
	require.True(t, iss.TotalSupply().IsZero())
}

func TestHaltBlocksMintAndBurn(t *testing.T) {
	iss, _, _ := newTestIssuer(t, 1_000_000)
	iss.Halt("compliance hold")

	_, _, err := iss.Mint("run-1", MintIntent{To: types.ResonatorId("buyer"), Amount: types.NewAmount(1)})
	require.ErrorIs(t, err, errs.ErrIssuerHalted)

	_, _, err = iss.Burn("run-1", BurnIntent{From: types.ResonatorId("buyer"), Amount: types.NewAmount(1)})
	require.ErrorIs(t, err, errs.ErrIssuerHalted)

	iss.Resume()
	_, _, err = iss.Mint("run-1", MintIntent{To: types.ResonatorId("buyer"), Amount: types.NewAmount(1)})
	require.NoError(t, err)
}

func TestBurnNeverProducesNegativeSupply(t *testing.T) {
	iss, _, _ := newTestIssuer(t, 1_000_000)
	buyer := types.ResonatorId("buyer")
	_, _, err := iss.Mint("run-1", MintIntent{To: buyer, Amount: types.NewAmount(500)})
	require.NoError(t, err)

	_, _, err = iss.Burn("run-1", BurnIntent{From: buyer, Amount: types.NewAmount(1000)})
	require.ErrorIs(t, err, errs.ErrInsufficientSupply)
	require.Equal(t, types.NewAmount(500), iss.TotalSupply())
}
