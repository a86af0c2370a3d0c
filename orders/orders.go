// Package orders owns the order aggregate: creation from a cart snapshot,
// pricing, payment-method handling, and payment reconciliation.
package orders

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/metrics"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/notify"
	"github.com/stylemart/stylemart-backend-go/paystack"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

const (
	// TaxRate is applied to the items subtotal.
	TaxRate = 0.10
	// ShippingPrice is a flat fee per order.
	ShippingPrice = 15.0
	// CustomUpfrontShare is the portion of a custom order paid before work starts.
	CustomUpfrontShare = 0.60
	// AmountToleranceMinor is the float slack allowed between the gateway's
	// reported amount and the ledger's expectation: one currency unit.
	AmountToleranceMinor = 100
)

// Store is the persistence surface the order service and the reconciliation
// engine share. *database.Store satisfies it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	CartByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	DeleteCart(ctx context.Context, userID primitive.ObjectID) error

	ProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) error

	InsertOrder(ctx context.Context, order *models.Order) error
	OrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	OrdersByCustomer(ctx context.Context, customer primitive.ObjectID) ([]models.Order, error)
	OrdersByStylist(ctx context.Context, stylist primitive.ObjectID) ([]models.Order, error)
	ApplyOrderPayment(ctx context.Context, id primitive.ObjectID, info models.PaymentInfo, status models.OrderStatus, stockReduced bool) error

	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	SettleTransaction(ctx context.Context, reference, verifiedBy string, prev, curr float64) (bool, error)
	FailTransaction(ctx context.Context, reference, reason string) (bool, error)
}

// Gateway is the slice of the payment gateway the order flow needs.
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

type Service struct {
	store      Store
	wallet     *wallet.Service
	gateway    Gateway
	cache      cache.Cache
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

func NewService(store Store, w *wallet.Service, gw Gateway, c cache.Cache, d *notify.Dispatcher, log *slog.Logger) *Service {
	return &Service{store: store, wallet: w, gateway: gw, cache: c, dispatcher: d, log: log}
}

type CreateOrderInput struct {
	Customer        primitive.ObjectID
	ShippingAddress models.Address
	PaymentMethod   models.PaymentMethod
	OrderType       models.OrderType
	Measurements    *models.Measurements
	MaterialSample  string
	CallbackURL     string
}

// CreateOrderResult is the common shape every payment-method variant returns.
type CreateOrderResult struct {
	Order            *models.Order        `json:"order"`
	PaymentStatus    models.PaymentStatus `json:"paymentStatus"`
	AmountPaid       float64              `json:"amountPaid"`
	Reference        string               `json:"reference,omitempty"`
	AuthorizationURL string               `json:"authorizationUrl,omitempty"`
}

// CreateOrder turns the customer's cart into an order. Everything persists in
// one unit of work: a failed precondition leaves no order, no wallet debit,
// no stock change, and the cart intact.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.store.UserByID(ctx, in.Customer)
	if err != nil {
		return nil, err
	}

	cart, err := s.store.CartByUser(ctx, in.Customer)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, errs.BadRequest("cart is empty")
	}

	order, err := s.buildOrder(ctx, in, cart)
	if err != nil {
		return nil, err
	}

	initialPayment, balanceDue := paymentSplit(order)

	var result *CreateOrderResult
	switch in.PaymentMethod {
	case models.MethodWallet:
		result, err = s.payWithWallet(ctx, order, initialPayment, balanceDue)
	case models.MethodCashOnDelivery:
		result, err = s.payOnDelivery(ctx, order)
	case models.MethodCreditCard, models.MethodBankTransfer:
		result, err = s.payThroughGateway(ctx, order, user, initialPayment, balanceDue, in)
	}
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(string(in.PaymentMethod)).Inc()
	s.invalidateOrderCaches(ctx, order, true)

	if result.PaymentStatus == models.PaymentCompleted || result.PaymentStatus == models.PaymentPartiallyPaid {
		s.dispatcher.OrderPaid(ctx, order, user.Email)
	}
	return result, nil
}

func validateInput(in CreateOrderInput) error {
	switch in.PaymentMethod {
	case models.MethodWallet, models.MethodCashOnDelivery, models.MethodCreditCard, models.MethodBankTransfer:
	default:
		return errs.BadRequest("invalid payment method")
	}
	switch in.OrderType {
	case models.OrderTypeStandard:
	case models.OrderTypeCustom:
		if in.PaymentMethod == models.MethodCashOnDelivery {
			return errs.BadRequest("cash on delivery is not available for custom orders")
		}
		if in.Measurements == nil {
			return errs.BadRequest("measurements are required for custom orders")
		}
	default:
		return errs.BadRequest("invalid order type")
	}
	return nil
}

// buildOrder snapshots the cart into an immutable item list and prices it.
// Stock is checked (not committed) for standard orders; the decrement happens
// only when payment completes.
func (s *Service) buildOrder(ctx context.Context, in CreateOrderInput, cart *models.Cart) (*models.Order, error) {
	var items []models.OrderItem
	for _, line := range cart.Items {
		product, err := s.store.ProductByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if in.OrderType == models.OrderTypeStandard && product.Stock < line.Quantity {
			return nil, errs.BadRequest("insufficient stock for " + product.Name)
		}

		item := models.OrderItem{
			ProductID:       line.ProductID,
			Name:            product.Name,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.Price,
			Stylist:         product.Stylist,
			Status:          models.OrderStatusPending,
		}
		if in.OrderType == models.OrderTypeCustom {
			item.Measurements = in.Measurements
			item.MaterialSample = in.MaterialSample
		}
		items = append(items, item)
	}

	itemsPrice := 0.0
	for _, item := range items {
		itemsPrice += item.PriceAtPurchase * float64(item.Quantity)
	}
	itemsPrice = round2(itemsPrice)
	taxPrice := round2(itemsPrice * TaxRate)
	totalPrice := round2(itemsPrice + taxPrice + ShippingPrice)

	now := time.Now()
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		Customer:        in.Customer,
		OrderType:       in.OrderType,
		OrderItems:      items,
		ShippingAddress: in.ShippingAddress,
		ItemsPrice:      itemsPrice,
		TaxPrice:        taxPrice,
		ShippingPrice:   ShippingPrice,
		TotalPrice:      totalPrice,
		OrderStatus:     models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if in.OrderType == models.OrderTypeCustom {
		initial, due := paymentSplit(order)
		for i := range order.OrderItems {
			order.OrderItems[i].PaymentPlan = &models.PaymentPlan{
				InitialPayment: initial,
				BalanceDue:     due,
			}
		}
	}
	return order, nil
}

// paymentSplit returns the upfront amount and the remainder. Standard orders
// pay in full; custom orders pay 60% before work starts.
func paymentSplit(order *models.Order) (initial, due float64) {
	if order.OrderType == models.OrderTypeCustom {
		initial = round2(order.TotalPrice * CustomUpfrontShare)
		return initial, round2(order.TotalPrice - initial)
	}
	return order.TotalPrice, 0
}

func (s *Service) payWithWallet(ctx context.Context, order *models.Order, initialPayment, balanceDue float64) (*CreateOrderResult, error) {
	status := models.PaymentCompleted
	if order.OrderType == models.OrderTypeCustom {
		status = models.PaymentPartiallyPaid
	}

	var reference string
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		tx, err := s.wallet.Debit(ctx, wallet.Entry{
			UserID:  order.Customer,
			OrderID: order.ID,
			Amount:  initialPayment,
			Purpose: models.PurposeOrderPayment,
		})
		if err != nil {
			return err
		}
		reference = tx.Reference

		now := time.Now()
		order.PaymentInfo = models.PaymentInfo{
			PaymentMethod: models.MethodWallet,
			PaymentStatus: status,
			AmountPaid:    initialPayment,
			BalanceDue:    balanceDue,
			TransactionID: tx.Reference,
			PaymentDate:   &now,
		}
		order.OrderStatus = models.OrderStatusProcessing

		if order.OrderType == models.OrderTypeStandard {
			for _, item := range order.OrderItems {
				if err := s.store.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			order.StockReduced = true
		}

		if err := s.store.InsertOrder(ctx, order); err != nil {
			return err
		}
		return s.store.DeleteCart(ctx, order.Customer)
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		Order:         order,
		PaymentStatus: status,
		AmountPaid:    initialPayment,
		Reference:     reference,
	}, nil
}

func (s *Service) payOnDelivery(ctx context.Context, order *models.Order) (*CreateOrderResult, error) {
	order.PaymentInfo = models.PaymentInfo{
		PaymentMethod: models.MethodCashOnDelivery,
		PaymentStatus: models.PaymentPending,
		AmountPaid:    0,
		BalanceDue:    order.TotalPrice,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertOrder(ctx, order); err != nil {
			return err
		}
		return s.store.DeleteCart(ctx, order.Customer)
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		Order:         order,
		PaymentStatus: models.PaymentPending,
	}, nil
}

// payThroughGateway initializes the charge before any state is persisted, so
// a gateway failure leaves nothing behind. The pending transaction written
// here is what the reconciliation engine later settles.
func (s *Service) payThroughGateway(ctx context.Context, order *models.Order, user *models.User, initialPayment, balanceDue float64, in CreateOrderInput) (*CreateOrderResult, error) {
	reference := wallet.NewReference()

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      paystack.ToMinor(initialPayment),
		Reference:   reference,
		CallbackURL: in.CallbackURL,
		Metadata: map[string]any{
			"orderId": order.ID.Hex(),
			"purpose": string(models.PurposeOrderPayment),
		},
		Channels: channelsFor(in.PaymentMethod),
	})
	if err != nil {
		return nil, err
	}

	order.PaymentInfo = models.PaymentInfo{
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: models.PaymentPending,
		AmountPaid:    0,
		BalanceDue:    order.TotalPrice,
		TransactionID: reference,
	}

	now := time.Now()
	pending := &models.Transaction{
		ID:        primitive.NewObjectID(),
		UserID:    order.Customer,
		OrderID:   order.ID,
		Amount:    initialPayment,
		Type:      models.TransactionCredit,
		Purpose:   models.PurposeOrderPayment,
		Reference: reference,
		Status:    models.TransactionPending,
		Metadata: map[string]any{
			"paymentMethod": string(in.PaymentMethod),
			"balanceDue":    balanceDue,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := s.store.InsertTransaction(ctx, pending); err != nil {
			return err
		}
		return s.store.DeleteCart(ctx, order.Customer)
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		Order:            order,
		PaymentStatus:    models.PaymentPending,
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
	}, nil
}

func channelsFor(method models.PaymentMethod) []string {
	if method == models.MethodBankTransfer {
		return []string{"bank_transfer"}
	}
	return []string{"card"}
}

// PayBalance initializes a gateway charge for the outstanding 40% of a
// partially paid custom order.
func (s *Service) PayBalance(ctx context.Context, orderID, customer primitive.ObjectID, callbackURL string) (*CreateOrderResult, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Customer != customer {
		return nil, errs.NotFound("order not found")
	}
	if order.PaymentInfo.PaymentStatus != models.PaymentPartiallyPaid || order.PaymentInfo.BalanceDue <= 0 {
		return nil, errs.BadRequest("order has no outstanding balance")
	}

	user, err := s.store.UserByID(ctx, customer)
	if err != nil {
		return nil, err
	}

	reference := wallet.NewReference()
	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      paystack.ToMinor(order.PaymentInfo.BalanceDue),
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata: map[string]any{
			"orderId": order.ID.Hex(),
			"purpose": "balance_payment",
		},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pending := &models.Transaction{
		ID:        primitive.NewObjectID(),
		UserID:    customer,
		OrderID:   order.ID,
		Amount:    order.PaymentInfo.BalanceDue,
		Type:      models.TransactionCredit,
		Purpose:   models.PurposeOrderPayment,
		Reference: reference,
		Status:    models.TransactionPending,
		Metadata:  map[string]any{"balancePayment": true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertTransaction(ctx, pending); err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		Order:            order,
		PaymentStatus:    order.PaymentInfo.PaymentStatus,
		Reference:        reference,
		AuthorizationURL: init.AuthorizationURL,
	}, nil
}

func (s *Service) Order(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.store.OrderByID(ctx, id)
}

func (s *Service) OrdersForCustomer(ctx context.Context, customer primitive.ObjectID) ([]models.Order, error) {
	return s.store.OrdersByCustomer(ctx, customer)
}

func (s *Service) OrdersForStylist(ctx context.Context, stylist primitive.ObjectID) ([]models.Order, error) {
	return s.store.OrdersByStylist(ctx, stylist)
}

func (s *Service) invalidateOrderCaches(ctx context.Context, order *models.Order, cartCleared bool) {
	customer := order.Customer.Hex()
	if cartCleared {
		s.cache.Clear(ctx, cache.CartKey(customer))
	}
	s.cache.Clear(ctx, cache.UserOrdersKey(customer))
	s.cache.Clear(ctx, cache.OrderKey(order.ID.Hex()))
	for _, stylist := range order.Stylists() {
		s.cache.Clear(ctx, cache.StylistOrdersKey(stylist.Hex()))
	}
	if order.StockReduced {
		for _, item := range order.OrderItems {
			s.cache.Clear(ctx, cache.ProductKey(item.ProductID.Hex()))
		}
		s.cache.Clear(ctx, cache.ProductsKey())
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
