package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
)

// ---- users ----

func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	_, err := s.db.Collection("users").InsertOne(ctx, user)
	return err
}

func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updatedAt"] = time.Now()
	_, err := s.db.Collection("users").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// AdjustWalletBalance applies delta to the user's balance and returns the new
// balance. A debit that would go negative matches no document and fails with
// BadRequest, which is what makes concurrent debits safe without a lock.
func (s *Store) AdjustWalletBalance(ctx context.Context, id primitive.ObjectID, delta float64) (float64, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["walletBalance"] = bson.M{"$gte": -delta}
	}

	var user models.User
	err := s.db.Collection("users").FindOneAndUpdate(
		ctx,
		filter,
		bson.M{
			"$inc": bson.M{"walletBalance": delta},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)

	if err == mongo.ErrNoDocuments {
		if _, lookupErr := s.UserByID(ctx, id); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, errs.BadRequest("insufficient wallet balance")
	}
	if err != nil {
		return 0, err
	}
	return user.WalletBalance, nil
}

// ---- products ----

func (s *Store) ProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.db.Collection("products").FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("product not found")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.db.Collection("products").Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) InsertProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.Collection("products").InsertOne(ctx, product)
	return err
}

func (s *Store) UpdateProduct(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updatedAt"] = time.Now()
	result, err := s.db.Collection("products").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errs.NotFound("product not found")
	}
	return nil
}

// ReserveStock decrements stock by qty. The filter re-checks stock >= qty so
// a replayed reconciliation can never drive stock negative.
func (s *Store) ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	result, err := s.db.Collection("products").UpdateOne(
		ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		if _, lookupErr := s.ProductByID(ctx, id); lookupErr != nil {
			return lookupErr
		}
		return errs.BadRequest("insufficient stock")
	}
	return nil
}

// ---- carts ----

func (s *Store) CartByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.Collection("carts").FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("cart is empty")
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (s *Store) AddCartItem(ctx context.Context, userID primitive.ObjectID, item models.CartItem) error {
	result := s.db.Collection("carts").FindOneAndUpdate(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$push":        bson.M{"items": item},
			"$set":         bson.M{"updatedAt": time.Now()},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.FindOneAndUpdate().SetUpsert(true),
	)
	if result.Err() != nil && result.Err() != mongo.ErrNoDocuments {
		return result.Err()
	}
	return nil
}

func (s *Store) RemoveCartItem(ctx context.Context, userID, productID primitive.ObjectID) error {
	result, err := s.db.Collection("carts").UpdateOne(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"productId": productID}},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return errs.NotFound("item not found in cart")
	}
	return nil
}

func (s *Store) UpdateCartQuantity(ctx context.Context, userID, productID primitive.ObjectID, qty int) error {
	result, err := s.db.Collection("carts").UpdateOne(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set": bson.M{
				"items.$[elem].quantity": qty,
				"updatedAt":              time.Now(),
			},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"elem.productId": productID}},
		}),
	)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return errs.NotFound("item not found in cart")
	}
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.db.Collection("carts").DeleteOne(ctx, bson.M{"userId": userID})
	return err
}

// ---- wishlists ----

func (s *Store) WishlistByUser(ctx context.Context, userID primitive.ObjectID) (*models.Wishlist, error) {
	var wishlist models.Wishlist
	err := s.db.Collection("wishlists").FindOne(ctx, bson.M{"userId": userID}).Decode(&wishlist)
	if err == mongo.ErrNoDocuments {
		return &models.Wishlist{UserID: userID, Products: []primitive.ObjectID{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &wishlist, nil
}

func (s *Store) AddWishlistProduct(ctx context.Context, userID, productID primitive.ObjectID) error {
	result := s.db.Collection("wishlists").FindOneAndUpdate(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$addToSet":    bson.M{"products": productID},
			"$set":         bson.M{"updatedAt": time.Now()},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.FindOneAndUpdate().SetUpsert(true),
	)
	if result.Err() != nil && result.Err() != mongo.ErrNoDocuments {
		return result.Err()
	}
	return nil
}

func (s *Store) RemoveWishlistProduct(ctx context.Context, userID, productID primitive.ObjectID) error {
	_, err := s.db.Collection("wishlists").UpdateOne(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$pull": bson.M{"products": productID},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	return err
}

// ---- orders ----

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.Collection("orders").InsertOne(ctx, order)
	return err
}

func (s *Store) OrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection("orders").FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customer primitive.ObjectID) ([]models.Order, error) {
	return s.findOrders(ctx, bson.M{"customer": customer})
}

func (s *Store) OrdersByStylist(ctx context.Context, stylist primitive.ObjectID) ([]models.Order, error) {
	return s.findOrders(ctx, bson.M{"orderItems.stylist": stylist})
}

func (s *Store) findOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := s.db.Collection("orders").Find(ctx, filter,
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ApplyOrderPayment rewrites the payment sub-document and aggregate status.
// Item membership is never touched after creation.
func (s *Store) ApplyOrderPayment(ctx context.Context, id primitive.ObjectID, info models.PaymentInfo, status models.OrderStatus, stockReduced bool) error {
	result, err := s.db.Collection("orders").UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"paymentInfo":  info,
			"orderStatus":  status,
			"stockReduced": stockReduced,
			"updatedAt":    time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errs.NotFound("order not found")
	}
	return nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) error {
	result, err := s.db.Collection("orders").UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"orderStatus": status, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errs.NotFound("order not found")
	}
	return nil
}

// ---- transactions ----

func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.db.Collection("transactions").InsertOne(ctx, tx)
	return err
}

func (s *Store) TransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.Collection("transactions").FindOne(ctx, bson.M{"reference": reference}).Decode(&tx)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NotFound("transaction not found")
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Transaction, error) {
	cursor, err := s.db.Collection("transactions").Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []models.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// SettleTransaction flips a pending entry to completed. The pending filter is
// the serialization point: of two concurrent reconciliations only one matches.
func (s *Store) SettleTransaction(ctx context.Context, reference, verifiedBy string, prev, curr float64) (bool, error) {
	result, err := s.db.Collection("transactions").UpdateOne(
		ctx,
		bson.M{"reference": reference, "status": models.TransactionPending},
		bson.M{"$set": bson.M{
			"status":          models.TransactionCompleted,
			"verifiedBy":      verifiedBy,
			"previousBalance": prev,
			"currentBalance":  curr,
			"updatedAt":       time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (s *Store) FailTransaction(ctx context.Context, reference, reason string) (bool, error) {
	result, err := s.db.Collection("transactions").UpdateOne(
		ctx,
		bson.M{"reference": reference, "status": models.TransactionPending},
		bson.M{"$set": bson.M{
			"status":        models.TransactionFailed,
			"failureReason": reason,
			"updatedAt":     time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// ReverseTransaction is the only transition allowed out of completed.
func (s *Store) ReverseTransaction(ctx context.Context, reference string) (bool, error) {
	result, err := s.db.Collection("transactions").UpdateOne(
		ctx,
		bson.M{"reference": reference, "status": models.TransactionCompleted},
		bson.M{"$set": bson.M{
			"status":    models.TransactionReversed,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}
