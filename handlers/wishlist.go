package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
)

func (h *Handler) GetWishlist(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wishlist, err := h.Store.WishlistByUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, wishlist)
}

func (h *Handler) AddToWishlist(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req struct {
		ProductID string `json:"productId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.Store.ProductByID(ctx, productID); err != nil {
		return fail(c, err)
	}
	if err := h.Store.AddWishlistProduct(ctx, userID, productID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update wishlist"})
	}

	h.Cache.Clear(ctx, cache.WishlistKey(userID.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Product added to wishlist"})
}

func (h *Handler) RemoveFromWishlist(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Store.RemoveWishlistProduct(ctx, userID, productID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update wishlist"})
	}

	h.Cache.Clear(ctx, cache.WishlistKey(userID.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Product removed from wishlist"})
}
