package ledger

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"openibank/core/errs"
	"openibank/core/types"
)

type accountAsset struct {
	account types.ResonatorId
	asset   types.AssetId
}

// account holds the per-(account,asset) balance and its exclusive lock.
// Operations on distinct pairs proceed in parallel; operations on the same
// pair are serialized by mu.
type account struct {
	mu      sync.Mutex
	balance types.Amount
}

// Ledger is a double-entry, asset-scoped, no-negative-balance ledger. Every
// entry is correlated to the commitment or receipt that authorized it.
type Ledger struct {
	acctMu   sync.Mutex
	accounts map[accountAsset]*account

	entryMu       sync.Mutex
	entries       []Entry
	byAccount     map[types.ResonatorId][]Entry
	byCorrelation map[string][]Entry

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{
		accounts:      make(map[accountAsset]*account),
		byAccount:     make(map[types.ResonatorId][]Entry),
		byCorrelation: make(map[string][]Entry),
		entropy:       ulid.Monotonic(rand.Reader, 0),
	}
}

func (l *Ledger) acctFor(acc types.ResonatorId, asset types.AssetId) *account {
	key := accountAsset{acc, asset}
	l.acctMu.Lock()
	defer l.acctMu.Unlock()
	a, ok := l.accounts[key]
	if !ok {
		a = &account{}
		l.accounts[key] = a
	}
	return a
}

func (l *Ledger) nextEntryID() string {
	l.entropyMu.Lock()
	defer l.entropyMu.Unlock()
	return types.NewULIDID(types.KindLedgerEntry, l.entropy)
}

// Balance returns a snapshot of account's balance in asset. It takes the
// pair's lock, so it waits for an in-flight mutation of that pair to finish.
func (l *Ledger) Balance(acc types.ResonatorId, asset types.AssetId) types.Amount {
	a := l.acctFor(acc, asset)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (l *Ledger) record(e Entry) {
	l.entryMu.Lock()
	defer l.entryMu.Unlock()
	l.entries = append(l.entries, e)
	l.byAccount[e.Account] = append(l.byAccount[e.Account], e)
	if e.CorrelationID != "" {
		l.byCorrelation[e.CorrelationID] = append(l.byCorrelation[e.CorrelationID], e)
	}
}

// Credit increases account's balance in asset and records an entry.
func (l *Ledger) Credit(acc types.ResonatorId, asset types.AssetId, amount types.Amount, reason Reason, correlationID string) (types.Amount, string, error) {
	a := l.acctFor(acc, asset)
	a.mu.Lock()
	defer a.mu.Unlock()
	return l.creditLocked(a, acc, asset, amount, reason, correlationID)
}

// creditLocked assumes a.mu is already held by the caller.
func (l *Ledger) creditLocked(a *account, acc types.ResonatorId, asset types.AssetId, amount types.Amount, reason Reason, correlationID string) (types.Amount, string, error) {
	newBalance, err := a.balance.CheckedAdd(amount)
	if err != nil {
		return types.Amount{}, "", fmt.Errorf("%w: %v", types.ErrOverflow, err)
	}
	id := l.nextEntryID()
	entry := Entry{
		ID:            id,
		Account:       acc,
		Asset:         asset,
		Direction:     Credit,
		Amount:        amount,
		BalanceAfter:  newBalance,
		Reason:        reason,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	a.balance = newBalance
	l.record(entry)
	return newBalance, id, nil
}

// Debit decreases account's balance in asset, failing with
// errs.ErrInsufficientBalance if the pre-balance is less than amount. On
// failure no state changes.
func (l *Ledger) Debit(acc types.ResonatorId, asset types.AssetId, amount types.Amount, reason Reason, correlationID string) (types.Amount, string, error) {
	a := l.acctFor(acc, asset)
	a.mu.Lock()
	defer a.mu.Unlock()
	return l.debitLocked(a, acc, asset, amount, reason, correlationID)
}

func (l *Ledger) debitLocked(a *account, acc types.ResonatorId, asset types.AssetId, amount types.Amount, reason Reason, correlationID string) (types.Amount, string, error) {
	newBalance, err := a.balance.CheckedSub(amount)
	if err != nil {
		return types.Amount{}, "", errs.ErrInsufficientBalance
	}
	id := l.nextEntryID()
	entry := Entry{
		ID:            id,
		Account:       acc,
		Asset:         asset,
		Direction:     Debit,
		Amount:        amount,
		BalanceAfter:  newBalance,
		Reason:        reason,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	a.balance = newBalance
	l.record(entry)
	return newBalance, id, nil
}

// Transfer atomically debits from and credits to. If the debit succeeds but
// the credit would fail (only possible on overflow of the receiver's
// balance), the debit is rolled back and no entries are recorded.
func (l *Ledger) Transfer(from, to types.ResonatorId, asset types.AssetId, amount types.Amount, commitmentID string) (debitEntryID, creditEntryID string, err error) {
	if from == to {
		return "", "", errors.New("ledger: transfer requires distinct accounts")
	}

	// Lock both accounts in a deterministic order (by account id) to avoid
	// deadlock between concurrent transfers that share an endpoint.
	fromAcct := l.acctFor(from, asset)
	toAcct := l.acctFor(to, asset)
	first, second := fromAcct, toAcct
	if string(to) < string(from) {
		first, second = toAcct, fromAcct
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	preBalance := fromAcct.balance
	if preBalance.LessThan(amount) {
		return "", "", errs.ErrInsufficientBalance
	}

	// Compute both sides before recording either, so a failure never leaves
	// a partial movement visible.
	newFromBalance, err := fromAcct.balance.CheckedSub(amount)
	if err != nil {
		return "", "", errs.ErrInsufficientBalance
	}
	newToBalance, err := toAcct.balance.CheckedAdd(amount)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", types.ErrOverflow, err)
	}

	debitID := l.nextEntryID()
	creditID := l.nextEntryID()
	now := time.Now().UTC()

	fromAcct.balance = newFromBalance
	toAcct.balance = newToBalance

	l.record(Entry{
		ID: debitID, Account: from, Asset: asset, Direction: Debit,
		Amount: amount, BalanceAfter: newFromBalance,
		Reason: TransferReason(commitmentID), CorrelationID: commitmentID, Timestamp: now,
	})
	l.record(Entry{
		ID: creditID, Account: to, Asset: asset, Direction: Credit,
		Amount: amount, BalanceAfter: newToBalance,
		Reason: TransferReason(commitmentID), CorrelationID: commitmentID, Timestamp: now,
	})

	return debitID, creditID, nil
}

// Mint is a specialization of Credit tagged with EntryReason::Mint.
func (l *Ledger) Mint(to types.ResonatorId, asset types.AssetId, amount types.Amount, issuerReceiptID string) (types.Amount, string, error) {
	return l.Credit(to, asset, amount, MintReason(issuerReceiptID), issuerReceiptID)
}

// Burn is a specialization of Debit tagged with EntryReason::Burn.
func (l *Ledger) Burn(from types.ResonatorId, asset types.AssetId, amount types.Amount, issuerReceiptID string) (types.Amount, string, error) {
	return l.Debit(from, asset, amount, BurnReason(issuerReceiptID), issuerReceiptID)
}

// AccountEntries returns every entry ever recorded against account, oldest
// first.
func (l *Ledger) AccountEntries(acc types.ResonatorId) []Entry {
	l.entryMu.Lock()
	defer l.entryMu.Unlock()
	out := make([]Entry, len(l.byAccount[acc]))
	copy(out, l.byAccount[acc])
	return out
}

// ReceiptEntries returns every entry correlated to the given commitment or
// receipt id.
func (l *Ledger) ReceiptEntries(correlationID string) []Entry {
	l.entryMu.Lock()
	defer l.entryMu.Unlock()
	out := make([]Entry, len(l.byCorrelation[correlationID]))
	copy(out, l.byCorrelation[correlationID])
	return out
}
