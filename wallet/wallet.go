// Package wallet is the ledger. Every balance change goes through here so a
// transaction row with previous/current balance snapshots brackets it.
package wallet

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
)

// Store is the slice of persistence the ledger needs.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AdjustWalletBalance(ctx context.Context, id primitive.ObjectID, delta float64) (float64, error)
	TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	TransactionsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	SettleTransaction(ctx context.Context, reference, verifiedBy string, prev, curr float64) (bool, error)
	ReverseTransaction(ctx context.Context, reference string) (bool, error)
}

type Service struct {
	store Store
	cache cache.Cache
	log   *slog.Logger
}

func NewService(store Store, c cache.Cache, log *slog.Logger) *Service {
	return &Service{store: store, cache: c, log: log}
}

// NewReference mints a globally unique payment reference.
func NewReference() string {
	return "ref_" + uuid.NewString()
}

// Entry describes one balance mutation.
type Entry struct {
	UserID     primitive.ObjectID
	OrderID    primitive.ObjectID // zero unless the entry pays for an order
	Amount     float64
	Reference  string
	Purpose    models.TransactionPurpose
	VerifiedBy string
	Metadata   map[string]any
}

// Debit atomically decrements the balance and appends a completed ledger
// entry. Fails with BadRequest on non-positive amounts or insufficient funds.
func (s *Service) Debit(ctx context.Context, e Entry) (*models.Transaction, error) {
	if e.Amount <= 0 {
		return nil, errs.BadRequest("debit amount must be positive")
	}
	if e.Reference == "" {
		e.Reference = NewReference()
	}

	var tx *models.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		balance, err := s.store.AdjustWalletBalance(ctx, e.UserID, -e.Amount)
		if err != nil {
			return err
		}
		tx = s.newTransaction(e, models.TransactionDebit, balance+e.Amount, balance)
		return s.store.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, e.UserID)
	return tx, nil
}

// Credit is idempotent by reference. A completed entry with the reference is
// returned unchanged; a pending one (gateway-funded) is settled; no entry
// means a fresh completed credit.
func (s *Service) Credit(ctx context.Context, e Entry) (*models.Transaction, error) {
	if e.Amount <= 0 {
		return nil, errs.BadRequest("credit amount must be positive")
	}
	if e.Reference == "" {
		e.Reference = NewReference()
	}

	var tx *models.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.TransactionByReference(ctx, e.Reference)
		switch {
		case err == nil && existing.Status == models.TransactionCompleted:
			tx = existing
			return nil
		case err == nil && existing.Status == models.TransactionPending:
			balance, err := s.store.AdjustWalletBalance(ctx, existing.UserID, existing.Amount)
			if err != nil {
				return err
			}
			settled, err := s.store.SettleTransaction(ctx, e.Reference, e.VerifiedBy,
				balance-existing.Amount, balance)
			if err != nil {
				return err
			}
			if !settled {
				return errs.BadRequest("transaction is no longer pending")
			}
			existing.Status = models.TransactionCompleted
			existing.VerifiedBy = e.VerifiedBy
			existing.PreviousBalance = balance - existing.Amount
			existing.CurrentBalance = balance
			tx = existing
			return nil
		case err == nil:
			return errs.BadRequest("reference already used by a terminal transaction")
		case errs.IsNotFound(err):
			balance, err := s.store.AdjustWalletBalance(ctx, e.UserID, e.Amount)
			if err != nil {
				return err
			}
			tx = s.newTransaction(e, models.TransactionCredit, balance-e.Amount, balance)
			return s.store.InsertTransaction(ctx, tx)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, tx.UserID)
	return tx, nil
}

// Reverse moves a completed entry to reversed and appends a compensating
// entry of the opposite type. History is never edited, only extended.
func (s *Service) Reverse(ctx context.Context, reference, reason string) (*models.Transaction, error) {
	var reversal *models.Transaction
	var userID primitive.ObjectID

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		original, err := s.store.TransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if original.Status != models.TransactionCompleted {
			return errs.BadRequest("only completed transactions can be reversed")
		}

		reversed, err := s.store.ReverseTransaction(ctx, reference)
		if err != nil {
			return err
		}
		if !reversed {
			return errs.BadRequest("transaction already reversed")
		}

		delta := original.Amount
		reversalType := models.TransactionCredit
		if original.Type == models.TransactionCredit {
			delta = -original.Amount
			reversalType = models.TransactionDebit
		}

		balance, err := s.store.AdjustWalletBalance(ctx, original.UserID, delta)
		if err != nil {
			return err
		}

		userID = original.UserID
		reversal = s.newTransaction(Entry{
			UserID:    original.UserID,
			OrderID:   original.OrderID,
			Amount:    original.Amount,
			Reference: reference + "_rev",
			Purpose:   models.PurposeReversal,
			Metadata: map[string]any{
				"reversedReference": reference,
				"reason":            reason,
			},
		}, reversalType, balance-delta, balance)
		return s.store.InsertTransaction(ctx, reversal)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction reversed",
		slog.String("reference", reference), slog.String("reason", reason))
	s.invalidate(ctx, userID)
	return reversal, nil
}

func (s *Service) Transactions(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

func (s *Service) newTransaction(e Entry, kind models.TransactionType, prev, curr float64) *models.Transaction {
	now := time.Now()
	return &models.Transaction{
		ID:              primitive.NewObjectID(),
		UserID:          e.UserID,
		OrderID:         e.OrderID,
		Amount:          e.Amount,
		Type:            kind,
		Purpose:         e.Purpose,
		PreviousBalance: prev,
		CurrentBalance:  curr,
		Reference:       e.Reference,
		Status:          models.TransactionCompleted,
		VerifiedBy:      e.VerifiedBy,
		Metadata:        e.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Service) invalidate(ctx context.Context, userID primitive.ObjectID) {
	id := userID.Hex()
	s.cache.Clear(ctx, cache.WalletKey(id))
	s.cache.Clear(ctx, cache.UserTransactionsPattern(id))
}
