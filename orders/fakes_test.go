package orders

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/paystack"
)

// fakeStore is an in-memory Store. WithTx serializes units of work under one
// mutex and rolls state back when fn fails, mirroring the transactional
// guarantees the mongo-backed store provides.
type fakeStore struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	products map[primitive.ObjectID]models.Product
	carts    map[primitive.ObjectID]models.Cart
	orders   map[primitive.ObjectID]models.Order
	txs      map[string]models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[primitive.ObjectID]models.User),
		products: make(map[primitive.ObjectID]models.Product),
		carts:    make(map[primitive.ObjectID]models.Cart),
		orders:   make(map[primitive.ObjectID]models.Order),
		txs:      make(map[string]models.Transaction),
	}
}

type txMarker struct{}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		f.users, f.products, f.carts, f.orders, f.txs = snap.users, snap.products, snap.carts, snap.orders, snap.txs
		return err
	}
	return nil
}

func (f *fakeStore) clone() *fakeStore {
	snap := newFakeStore()
	for k, v := range f.users {
		snap.users[k] = v
	}
	for k, v := range f.products {
		snap.products[k] = v
	}
	for k, v := range f.carts {
		snap.carts[k] = v
	}
	for k, v := range f.orders {
		snap.orders[k] = v
	}
	for k, v := range f.txs {
		snap.txs[k] = v
	}
	return snap
}

func (f *fakeStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	return &user, nil
}

func (f *fakeStore) AdjustWalletBalance(_ context.Context, id primitive.ObjectID, delta float64) (float64, error) {
	user, ok := f.users[id]
	if !ok {
		return 0, errs.NotFound("user not found")
	}
	if delta < 0 && user.WalletBalance < -delta {
		return 0, errs.BadRequest("insufficient wallet balance")
	}
	user.WalletBalance += delta
	f.users[id] = user
	return user.WalletBalance, nil
}

func (f *fakeStore) CartByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return nil, errs.NotFound("cart is empty")
	}
	return &cart, nil
}

func (f *fakeStore) DeleteCart(_ context.Context, userID primitive.ObjectID) error {
	delete(f.carts, userID)
	return nil
}

func (f *fakeStore) ProductByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, errs.NotFound("product not found")
	}
	return &product, nil
}

func (f *fakeStore) ReserveStock(_ context.Context, id primitive.ObjectID, qty int) error {
	product, ok := f.products[id]
	if !ok {
		return errs.NotFound("product not found")
	}
	if product.Stock < qty {
		return errs.BadRequest("insufficient stock")
	}
	product.Stock -= qty
	f.products[id] = product
	return nil
}

func (f *fakeStore) InsertOrder(_ context.Context, order *models.Order) error {
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeStore) OrderByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, errs.NotFound("order not found")
	}
	return &order, nil
}

func (f *fakeStore) OrdersByCustomer(_ context.Context, customer primitive.ObjectID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.Customer == customer {
			out = append(out, order)
		}
	}
	return out, nil
}

func (f *fakeStore) OrdersByStylist(_ context.Context, stylist primitive.ObjectID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		for _, item := range order.OrderItems {
			if item.Stylist == stylist {
				out = append(out, order)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyOrderPayment(_ context.Context, id primitive.ObjectID, info models.PaymentInfo, status models.OrderStatus, stockReduced bool) error {
	order, ok := f.orders[id]
	if !ok {
		return errs.NotFound("order not found")
	}
	order.PaymentInfo = info
	order.OrderStatus = status
	order.StockReduced = stockReduced
	f.orders[id] = order
	return nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	if _, exists := f.txs[tx.Reference]; exists {
		return errs.BadRequest("duplicate reference")
	}
	f.txs[tx.Reference] = *tx
	return nil
}

func (f *fakeStore) TransactionByReference(_ context.Context, reference string) (*models.Transaction, error) {
	tx, ok := f.txs[reference]
	if !ok {
		return nil, errs.NotFound("transaction not found")
	}
	return &tx, nil
}

func (f *fakeStore) TransactionsByUser(_ context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range f.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) SettleTransaction(_ context.Context, reference, verifiedBy string, prev, curr float64) (bool, error) {
	tx, ok := f.txs[reference]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionCompleted
	tx.VerifiedBy = verifiedBy
	tx.PreviousBalance = prev
	tx.CurrentBalance = curr
	f.txs[reference] = tx
	return true, nil
}

func (f *fakeStore) FailTransaction(_ context.Context, reference, reason string) (bool, error) {
	tx, ok := f.txs[reference]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionFailed
	tx.FailureReason = reason
	f.txs[reference] = tx
	return true, nil
}

func (f *fakeStore) ReverseTransaction(_ context.Context, reference string) (bool, error) {
	tx, ok := f.txs[reference]
	if !ok || tx.Status != models.TransactionCompleted {
		return false, nil
	}
	tx.Status = models.TransactionReversed
	f.txs[reference] = tx
	return true, nil
}

// recordingCache records cleared keys so invalidation policy is assertable.
type recordingCache struct {
	mu      sync.Mutex
	cleared []string
}

func (r *recordingCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (r *recordingCache) Set(context.Context, string, []byte, time.Duration) {}

func (r *recordingCache) Clear(_ context.Context, pattern string) {
	r.mu.Lock()
	r.cleared = append(r.cleared, pattern)
	r.mu.Unlock()
}

func (r *recordingCache) clearedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cleared...)
}

// fakeGateway returns canned responses.
type fakeGateway struct {
	initCalls  int
	initErr    error
	verifyResp *paystack.VerifyResult
	verifyErr  error
}

func (g *fakeGateway) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	g.initCalls++
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "access_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paystack.VerifyResult, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verifyResp, nil
}

// nullNotifier and nullEmail satisfy the dispatcher without side effects.
type nullNotifier struct{}

func (nullNotifier) Notify(string, string, any) error { return nil }

type nullEmail struct{}

func (nullEmail) SendOrderEmail(context.Context, string, *models.Order) error { return nil }
