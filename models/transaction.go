package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionReversed  TransactionStatus = "reversed"
)

type TransactionPurpose string

const (
	PurposeOrderPayment  TransactionPurpose = "order_payment"
	PurposeWalletFunding TransactionPurpose = "wallet_funding"
	PurposeReversal      TransactionPurpose = "reversal"
)

// Transaction is one ledger entry. Entries are never deleted; reference is
// globally unique and acts as the idempotency key for reconciliation.
type Transaction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	OrderID         primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Amount          float64            `bson:"amount" json:"amount"`
	Type            TransactionType    `bson:"type" json:"type"`
	Purpose         TransactionPurpose `bson:"purpose" json:"purpose"`
	PreviousBalance float64            `bson:"previousBalance" json:"previousBalance"`
	CurrentBalance  float64            `bson:"currentBalance" json:"currentBalance"`
	Reference       string             `bson:"reference" json:"reference"`
	Status          TransactionStatus  `bson:"status" json:"status"`
	// VerifiedBy records which path settled the entry: "webhook" or "manual".
	VerifiedBy    string         `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`
	FailureReason string         `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	Metadata      map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt" json:"updatedAt"`
}
