package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/models"
)

func (h *Handler) AddToCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Snapshot the price now; checkout uses the price as added, not live.
	product, err := h.Store.ProductByID(ctx, productID)
	if err != nil {
		return fail(c, err)
	}

	item := models.CartItem{
		ProductID: productID,
		Quantity:  req.Quantity,
		Price:     product.Price,
	}
	if err := h.Store.AddCartItem(ctx, userID, item); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add item to cart"})
	}

	h.Cache.Clear(ctx, cache.CartKey(userID.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Item added to cart"})
}

// GetCart retrieves the user's cart
func (h *Handler) GetCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cart, err := h.Store.CartByUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RemoveFromCart removes an item from the cart
func (h *Handler) RemoveFromCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Store.RemoveCartItem(ctx, userID, productID); err != nil {
		return fail(c, err)
	}

	h.Cache.Clear(ctx, cache.CartKey(userID.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

// UpdateCartQuantity updates the quantity of an item in the cart
func (h *Handler) UpdateCartQuantity(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Store.UpdateCartQuantity(ctx, userID, productID, req.Quantity); err != nil {
		return fail(c, err)
	}

	h.Cache.Clear(ctx, cache.CartKey(userID.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Quantity updated successfully"})
}
