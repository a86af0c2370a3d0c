package wallet

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
)

// ledgerStore is an in-memory Store with the same rollback and CAS semantics
// as the mongo-backed one.
type ledgerStore struct {
	mu       sync.Mutex
	balances map[primitive.ObjectID]float64
	txs      map[string]models.Transaction
}

func newLedgerStore() *ledgerStore {
	return &ledgerStore{
		balances: make(map[primitive.ObjectID]float64),
		txs:      make(map[string]models.Transaction),
	}
}

type txMarker struct{}

func (l *ledgerStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[primitive.ObjectID]float64, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v
	}
	txs := make(map[string]models.Transaction, len(l.txs))
	for k, v := range l.txs {
		txs[k] = v
	}
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		l.balances, l.txs = balances, txs
		return err
	}
	return nil
}

func (l *ledgerStore) AdjustWalletBalance(_ context.Context, id primitive.ObjectID, delta float64) (float64, error) {
	balance, ok := l.balances[id]
	if !ok {
		return 0, errs.NotFound("user not found")
	}
	if delta < 0 && balance < -delta {
		return 0, errs.BadRequest("insufficient wallet balance")
	}
	l.balances[id] = balance + delta
	return balance + delta, nil
}

func (l *ledgerStore) TransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	tx, ok := l.txs[reference]
	if !ok {
		return nil, errs.NotFound("transaction not found")
	}
	return &tx, nil
}

func (l *ledgerStore) TransactionsByUser(_ context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range l.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (l *ledgerStore) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	if _, exists := l.txs[tx.Reference]; exists {
		return errs.BadRequest("duplicate reference")
	}
	l.txs[tx.Reference] = *tx
	return nil
}

func (l *ledgerStore) SettleTransaction(_ context.Context, reference, verifiedBy string, prev, curr float64) (bool, error) {
	tx, ok := l.txs[reference]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionCompleted
	tx.VerifiedBy = verifiedBy
	tx.PreviousBalance = prev
	tx.CurrentBalance = curr
	l.txs[reference] = tx
	return true, nil
}

func (l *ledgerStore) ReverseTransaction(_ context.Context, reference string) (bool, error) {
	tx, ok := l.txs[reference]
	if !ok || tx.Status != models.TransactionCompleted {
		return false, nil
	}
	tx.Status = models.TransactionReversed
	l.txs[reference] = tx
	return true, nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (nopCache) Set(context.Context, string, []byte, time.Duration) {}
func (nopCache) Clear(context.Context, string)                      {}

func newLedgerService() (*Service, *ledgerStore) {
	store := newLedgerStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, nopCache{}, logger), store
}

func TestDebitBracketsTheBalanceChange(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 300

	tx, err := svc.Debit(context.Background(), Entry{
		UserID:  user,
		Amount:  120,
		Purpose: models.PurposeOrderPayment,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionDebit, tx.Type)
	assert.Equal(t, models.TransactionCompleted, tx.Status)
	assert.Equal(t, 300.0, tx.PreviousBalance)
	assert.Equal(t, 180.0, tx.CurrentBalance)
	assert.Equal(t, tx.PreviousBalance-tx.Amount, tx.CurrentBalance)
	assert.Equal(t, 180.0, store.balances[user])
	assert.NotEmpty(t, tx.Reference)
}

func TestDebitInsufficientFundsLeavesNoEntry(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 50

	_, err := svc.Debit(context.Background(), Entry{UserID: user, Amount: 120})
	require.Error(t, err)
	assert.True(t, errs.IsBadRequest(err))
	assert.Equal(t, 50.0, store.balances[user])
	assert.Empty(t, store.txs)
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newLedgerService()

	for _, amount := range []float64{0, -10} {
		_, err := svc.Debit(context.Background(), Entry{UserID: primitive.NewObjectID(), Amount: amount})
		assert.True(t, errs.IsBadRequest(err))
	}
}

func TestCreditFreshEntry(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 10

	tx, err := svc.Credit(context.Background(), Entry{
		UserID:     user,
		Amount:     90,
		Purpose:    models.PurposeWalletFunding,
		VerifiedBy: "manual",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionCredit, tx.Type)
	assert.Equal(t, 10.0, tx.PreviousBalance)
	assert.Equal(t, 100.0, tx.CurrentBalance)
	assert.Equal(t, 100.0, store.balances[user])
}

func TestCreditSettlesPendingEntry(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 25
	store.txs["ref_pend"] = models.Transaction{
		UserID:    user,
		Amount:    75,
		Reference: "ref_pend",
		Purpose:   models.PurposeWalletFunding,
		Status:    models.TransactionPending,
	}

	tx, err := svc.Credit(context.Background(), Entry{
		UserID:     user,
		Amount:     75,
		Reference:  "ref_pend",
		VerifiedBy: "webhook",
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionCompleted, tx.Status)
	assert.Equal(t, "webhook", tx.VerifiedBy)
	assert.Equal(t, 25.0, tx.PreviousBalance)
	assert.Equal(t, 100.0, tx.CurrentBalance)
	assert.Equal(t, 100.0, store.balances[user])
}

func TestCreditIsIdempotentByReference(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 0

	entry := Entry{UserID: user, Amount: 60, Reference: "ref_dup", Purpose: models.PurposeWalletFunding}

	first, err := svc.Credit(context.Background(), entry)
	require.NoError(t, err)

	second, err := svc.Credit(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, first.CurrentBalance, second.CurrentBalance)
	assert.Equal(t, 60.0, store.balances[user], "balance credited exactly once")
	assert.Len(t, store.txs, 1)
}

func TestCreditRejectsTerminalReference(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 0
	store.txs["ref_failed"] = models.Transaction{
		UserID:    user,
		Amount:    60,
		Reference: "ref_failed",
		Status:    models.TransactionFailed,
	}

	_, err := svc.Credit(context.Background(), Entry{UserID: user, Amount: 60, Reference: "ref_failed"})
	require.Error(t, err)
	assert.True(t, errs.IsBadRequest(err))
	assert.Equal(t, 0.0, store.balances[user])
}

func TestReverseCreditAppendsCompensatingDebit(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 0

	credited, err := svc.Credit(context.Background(), Entry{
		UserID:    user,
		Amount:    200,
		Reference: "ref_orig",
		Purpose:   models.PurposeWalletFunding,
	})
	require.NoError(t, err)
	require.Equal(t, 200.0, store.balances[user])

	reversal, err := svc.Reverse(context.Background(), credited.Reference, "chargeback")
	require.NoError(t, err)

	assert.Equal(t, "ref_orig_rev", reversal.Reference)
	assert.Equal(t, models.TransactionDebit, reversal.Type)
	assert.Equal(t, models.PurposeReversal, reversal.Purpose)
	assert.Equal(t, 200.0, reversal.PreviousBalance)
	assert.Equal(t, 0.0, reversal.CurrentBalance)
	assert.Equal(t, 0.0, store.balances[user])

	// original flipped, not rewritten
	original := store.txs["ref_orig"]
	assert.Equal(t, models.TransactionReversed, original.Status)
	assert.Equal(t, 200.0, original.Amount)

	// a second reversal is refused
	_, err = svc.Reverse(context.Background(), credited.Reference, "again")
	require.Error(t, err)
	assert.True(t, errs.IsBadRequest(err))
	assert.Equal(t, 0.0, store.balances[user])
}

func TestReverseDebitRefundsTheCustomer(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 500

	debited, err := svc.Debit(context.Background(), Entry{
		UserID:  user,
		Amount:  125,
		Purpose: models.PurposeOrderPayment,
	})
	require.NoError(t, err)
	require.Equal(t, 375.0, store.balances[user])

	reversal, err := svc.Reverse(context.Background(), debited.Reference, "order cancelled")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionCredit, reversal.Type)
	assert.Equal(t, 375.0, reversal.PreviousBalance)
	assert.Equal(t, 500.0, reversal.CurrentBalance)
	assert.Equal(t, 500.0, store.balances[user])
}

func TestAuditInvariantHoldsAcrossHistory(t *testing.T) {
	svc, store := newLedgerService()
	user := primitive.NewObjectID()
	store.balances[user] = 0

	_, err := svc.Credit(context.Background(), Entry{UserID: user, Amount: 300, Purpose: models.PurposeWalletFunding})
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), Entry{UserID: user, Amount: 120, Purpose: models.PurposeOrderPayment})
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), Entry{UserID: user, Amount: 30, Purpose: models.PurposeOrderPayment})
	require.NoError(t, err)

	history, err := svc.Transactions(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// every entry brackets its own change
	for _, tx := range history {
		delta := tx.Amount
		if tx.Type == models.TransactionDebit {
			delta = -tx.Amount
		}
		assert.Equal(t, tx.PreviousBalance+delta, tx.CurrentBalance, tx.Reference)
	}
	assert.Equal(t, 150.0, store.balances[user])
}
