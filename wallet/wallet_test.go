package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"openibank/core/errs"
	"openibank/core/types"
	"openibank/gate"
	"openibank/ledger"
	"openibank/worldline"
)

func setup(t *testing.T) (*Wallet, *ledger.Ledger, types.ResonatorId, types.ResonatorId) {
	t.Helper()
	buyer := types.ResonatorId("buyer")
	seller := types.ResonatorId("seller")
	l := ledger.New()
	wl := worldline.New(nil)
	g := gate.New(wl, gate.DefaultStages(0), 0, 0)
	_, _, err := l.Mint(buyer, types.IUSD, types.NewAmount(1000), "r1")
	require.NoError(t, err)
	w := New(buyer, l, g)
	return w, l, buyer, seller
}

func TestPermitOverspendRejected(t *testing.T) {
	w, l, buyer, seller := setup(t)
	budgetID := w.CreateBudget(types.NewAmount(500), AnyCounterparty())
	permit, err := w.IssuePermit(budgetID, types.NewAmount(100), types.IUSD, SpecificCounterparty(seller), "services", time.Hour)
	require.NoError(t, err)

	_, _, _, err = w.ExecutePayment("run-1", PaymentIntent{
		Owner: buyer, PermitID: permit.PermitID, Target: seller, Amount: types.NewAmount(150), Asset: types.IUSD,
	})
	require.ErrorIs(t, err, errs.ErrPermitExceeded)
	require.Equal(t, types.NewAmount(1000), l.Balance(buyer, types.IUSD))

	got, _ := w.Permit(permit.PermitID)
	require.Equal(t, types.NewAmount(100), got.Remaining)
}

func TestCounterpartyMismatchRejected(t *testing.T) {
	w, l, buyer, seller := setup(t)
	budgetID := w.CreateBudget(types.NewAmount(500), AnyCounterparty())
	permit, err := w.IssuePermit(budgetID, types.NewAmount(200), types.IUSD, SpecificCounterparty(seller), "services", time.Hour)
	require.NoError(t, err)

	unauthorized := types.ResonatorId("unauthorized_b")
	_, _, _, err = w.ExecutePayment("run-1", PaymentIntent{
		Owner: buyer, PermitID: permit.PermitID, Target: unauthorized, Amount: types.NewAmount(50), Asset: types.IUSD,
	})
	require.ErrorIs(t, err, errs.ErrPermitCounterpartyMismatch)
	require.True(t, l.Balance(unauthorized, types.IUSD).IsZero())
}

func TestIssuePermitExceedingBudgetRejectedAtIssuance(t *testing.T) {
	w, _, _, seller := setup(t)
	budgetID := w.CreateBudget(types.NewAmount(100), AnyCounterparty())
	_, err := w.IssuePermit(budgetID, types.NewAmount(200), types.IUSD, SpecificCounterparty(seller), "services", time.Hour)
	require.ErrorIs(t, err, errs.ErrBudgetExceeded)
}

func TestSuccessfulPaymentUpdatesPermitAndBudget(t *testing.T) {
	w, l, buyer, seller := setup(t)
	budgetID := w.CreateBudget(types.NewAmount(500), AnyCounterparty())
	permit, err := w.IssuePermit(budgetID, types.NewAmount(200), types.IUSD, SpecificCounterparty(seller), "services", time.Hour)
	require.NoError(t, err)

	_, _, _, err = w.ExecutePayment("run-1", PaymentIntent{
		Owner: buyer, PermitID: permit.PermitID, Target: seller, Amount: types.NewAmount(150), Asset: types.IUSD,
	})
	require.NoError(t, err)
	require.Equal(t, types.NewAmount(850), l.Balance(buyer, types.IUSD))
	require.Equal(t, types.NewAmount(150), l.Balance(seller, types.IUSD))

	got, _ := w.Permit(permit.PermitID)
	require.Equal(t, types.NewAmount(50), got.Remaining)
	budget, _ := w.Budget(budgetID)
	require.Equal(t, types.NewAmount(150), budget.SpentTotal)
}
