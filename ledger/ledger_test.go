package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"openibank/core/errs"
	"openibank/core/types"
)

func TestCreditDebitBalances(t *testing.T) {
	l := New()
	acc := types.ResonatorId("buyer")

	bal, _, err := l.Mint(acc, types.IUSD, types.NewAmount(1000), "receipt_1")
	require.NoError(t, err)
	require.Equal(t, types.NewAmount(1000), bal)
	require.Equal(t, types.NewAmount(1000), l.Balance(acc, types.IUSD))

	bal, _, err = l.Debit(acc, types.IUSD, types.NewAmount(400), TransferReason("cmmt_1"), "cmmt_1")
	require.NoError(t, err)
	require.Equal(t, types.NewAmount(600), bal)
	require.Equal(t, types.NewAmount(600), l.Balance(acc, types.IUSD))
}

func TestDebitInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	l := New()
	acc := types.ResonatorId("buyer")
	_, _, err := l.Mint(acc, types.IUSD, types.NewAmount(100), "receipt_1")
	require.NoError(t, err)

	_, _, err = l.Debit(acc, types.IUSD, types.NewAmount(200), TransferReason("cmmt_x"), "cmmt_x")
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)
	require.Equal(t, types.NewAmount(100), l.Balance(acc, types.IUSD))
}

func TestTransferAtomicity(t *testing.T) {
	l := New()
	buyer := types.ResonatorId("buyer")
	seller := types.ResonatorId("seller")
	_, _, err := l.Mint(buyer, types.IUSD, types.NewAmount(500), "receipt_1")
	require.NoError(t, err)

	debitID, creditID, err := l.Transfer(buyer, seller, types.IUSD, types.NewAmount(200), "cmmt_1")
	require.NoError(t, err)
	require.NotEmpty(t, debitID)
	require.NotEmpty(t, creditID)
	require.Equal(t, types.NewAmount(300), l.Balance(buyer, types.IUSD))
	require.Equal(t, types.NewAmount(200), l.Balance(seller, types.IUSD))

	entries := l.ReceiptEntries("cmmt_1")
	require.Len(t, entries, 2)
}

func TestTransferInsufficientBalanceNoPartialEffect(t *testing.T) {
	l := New()
	buyer := types.ResonatorId("buyer")
	seller := types.ResonatorId("seller")

	_, _, err := l.Transfer(buyer, seller, types.IUSD, types.NewAmount(1), "cmmt_1")
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)
	require.True(t, l.Balance(buyer, types.IUSD).IsZero())
	require.True(t, l.Balance(seller, types.IUSD).IsZero())
}

func TestConcurrentDistinctPairsParallel(t *testing.T) {
	l := New()
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			acc := types.ResonatorId(string(rune('a' + i%26)))
			_, _, _ = l.Mint(acc, types.IUSD, types.NewAmount(1), "r")
		}(i)
	}
	wg.Wait()
}

func TestNoNegativeBalanceInvariant(t *testing.T) {
	l := New()
	acc := types.ResonatorId("buyer")
	_, _, err := l.Mint(acc, types.IUSD, types.NewAmount(10), "r")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, _ = l.Debit(acc, types.IUSD, types.NewAmount(1), TransferReason("x"), "x")
		}()
	}
	wg.Wait()
	require.True(t, l.Balance(acc, types.IUSD).Cmp(types.Zero) >= 0)
}
