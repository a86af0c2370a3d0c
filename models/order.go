package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentCompleted     PaymentStatus = "completed"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodWallet         PaymentMethod = "wallet"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	MethodCreditCard     PaymentMethod = "credit_card"
	MethodBankTransfer   PaymentMethod = "bank_transfer"
)

type OrderType string

const (
	OrderTypeStandard OrderType = "standard"
	OrderTypeCustom   OrderType = "custom"
)

// Measurements for custom (made-to-measure) order items. Values in cm.
type Measurements struct {
	Bust      float64 `bson:"bust,omitempty" json:"bust,omitempty"`
	Waist     float64 `bson:"waist,omitempty" json:"waist,omitempty"`
	Hips      float64 `bson:"hips,omitempty" json:"hips,omitempty"`
	Height    float64 `bson:"height,omitempty" json:"height,omitempty"`
	ArmLength float64 `bson:"armLength,omitempty" json:"armLength,omitempty"`
	Notes     string  `bson:"notes,omitempty" json:"notes,omitempty"`
}

type PaymentPlan struct {
	InitialPayment float64 `bson:"initialPayment" json:"initialPayment"`
	BalanceDue     float64 `bson:"balanceDue" json:"balanceDue"`
}

type OrderItem struct {
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	Name            string             `bson:"name" json:"name"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	PriceAtPurchase float64            `bson:"priceAtPurchase" json:"priceAtPurchase"`
	Stylist         primitive.ObjectID `bson:"stylist" json:"stylist"`
	Status          OrderStatus        `bson:"status" json:"status"`
	Measurements    *Measurements      `bson:"measurements,omitempty" json:"measurements,omitempty"`
	MaterialSample  string             `bson:"materialSample,omitempty" json:"materialSample,omitempty"`
	PaymentPlan     *PaymentPlan       `bson:"paymentPlan,omitempty" json:"paymentPlan,omitempty"`
}

type PaymentInfo struct {
	PaymentMethod PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	AmountPaid    float64       `bson:"amountPaid" json:"amountPaid"`
	BalanceDue    float64       `bson:"balanceDue" json:"balanceDue"`
	// TransactionID is the reference of the most recent ledger entry for this
	// order. A lookup key, not an owning link.
	TransactionID string     `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	PaymentDate   *time.Time `bson:"paymentDate,omitempty" json:"paymentDate,omitempty"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Customer        primitive.ObjectID `bson:"customer" json:"customer"`
	OrderType       OrderType          `bson:"orderType" json:"orderType"`
	OrderItems      []OrderItem        `bson:"orderItems" json:"orderItems"`
	ShippingAddress Address            `bson:"shippingAddress" json:"shippingAddress"`
	PaymentInfo     PaymentInfo        `bson:"paymentInfo" json:"paymentInfo"`
	ItemsPrice      float64            `bson:"itemsPrice" json:"itemsPrice"`
	TaxPrice        float64            `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice   float64            `bson:"shippingPrice" json:"shippingPrice"`
	TotalPrice      float64            `bson:"totalPrice" json:"totalPrice"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	// StockReduced guards against decrementing product stock twice when a
	// payment is reconciled more than once.
	StockReduced bool      `bson:"stockReduced" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Stylists returns the distinct stylists owning items on the order.
func (o *Order) Stylists() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, item := range o.OrderItems {
		if !seen[item.Stylist] {
			seen[item.Stylist] = true
			out = append(out, item.Stylist)
		}
	}
	return out
}
