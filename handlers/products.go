package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/models"
)

func (h *Handler) GetProduct(c echo.Context) error {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	key := cache.ProductKey(objID.Hex())
	if cached, ok := h.Cache.Get(c.Request().Context(), key); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	product, err := h.Store.ProductByID(c.Request().Context(), objID)
	if err != nil {
		return fail(c, err)
	}

	if body, err := json.Marshal(product); err == nil {
		h.Cache.Set(c.Request().Context(), key, body, 5*time.Minute)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *Handler) GetProducts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cached, ok := h.Cache.Get(ctx, cache.ProductsKey()); ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	products, err := h.Store.Products(ctx)
	if err != nil {
		return fail(c, err)
	}

	if body, err := json.Marshal(products); err == nil {
		h.Cache.Set(ctx, cache.ProductsKey(), body, 5*time.Minute)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *Handler) CreateProduct(c echo.Context) error {
	var product models.Product
	if err := c.Bind(&product); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if product.Price <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Price must be positive"})
	}
	if product.Stock < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Stock cannot be negative"})
	}

	role, _ := c.Get("role").(models.UserRole)
	if role == models.RoleStylist {
		product.Stylist = c.Get("userID").(primitive.ObjectID)
	}

	product.ID = primitive.NewObjectID()
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Store.InsertProduct(ctx, &product); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create product"})
	}

	h.Cache.Clear(ctx, cache.ProductsKey())
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct is the admin stock/price edit path; the only stock mutation
// outside payment reconciliation.
func (h *Handler) UpdateProduct(c echo.Context) error {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Price must be positive"})
		}
		set["price"] = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Stock cannot be negative"})
		}
		set["stock"] = *req.Stock
	}
	if len(set) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nothing to update"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Store.UpdateProduct(ctx, objID, set); err != nil {
		return fail(c, err)
	}

	h.Cache.Clear(ctx, cache.ProductKey(objID.Hex()))
	h.Cache.Clear(ctx, cache.ProductsKey())
	return c.JSON(http.StatusOK, map[string]string{"message": "Product updated successfully"})
}
