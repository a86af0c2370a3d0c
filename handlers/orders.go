package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stylemart/stylemart-backend-go/cache"
	"github.com/stylemart/stylemart-backend-go/errs"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/orders"
)

type CreateOrderRequest struct {
	ShippingAddress models.Address       `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	OrderType       models.OrderType     `json:"orderType"`
	Measurements    *models.Measurements `json:"measurements,omitempty"`
	MaterialSample  string               `json:"materialSample,omitempty"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeStandard
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := h.Orders.CreateOrder(ctx, orders.CreateOrderInput{
		Customer:        userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		OrderType:       req.OrderType,
		Measurements:    req.Measurements,
		MaterialSample:  req.MaterialSample,
		CallbackURL:     h.CallbackURL,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetOrders(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := h.Orders.OrdersForCustomer(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetStylistOrders lists orders containing the stylist's items.
func (h *Handler) GetStylistOrders(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := h.Orders.OrdersForStylist(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetOrder(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	orderID, err := primitive.ObjectIDFromHex(c.Param("orderId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID format"})
	}

	order, err := h.Orders.Order(c.Request().Context(), orderID)
	if err != nil {
		return fail(c, err)
	}

	role, _ := c.Get("role").(models.UserRole)
	if order.Customer != userID && role != models.RoleAdmin && !orderHasStylist(order, userID) {
		return fail(c, errs.NotFound("order not found"))
	}
	return c.JSON(http.StatusOK, order)
}

func orderHasStylist(order *models.Order, stylist primitive.ObjectID) bool {
	for _, item := range order.OrderItems {
		if item.Stylist == stylist {
			return true
		}
	}
	return false
}

// GetOrderStatus is the lightweight polling route for order pages.
func (h *Handler) GetOrderStatus(c echo.Context) error {
	orderID, err := primitive.ObjectIDFromHex(c.Param("orderId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID format"})
	}

	order, err := h.Orders.Order(c.Request().Context(), orderID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"orderStatus":   string(order.OrderStatus),
		"paymentStatus": string(order.PaymentInfo.PaymentStatus),
	})
}

// UpdateOrderStatus moves an order through fulfilment. Payment state is only
// ever changed by reconciliation; this route touches the order status alone.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	orderID, err := primitive.ObjectIDFromHex(c.Param("orderId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID format"})
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	switch req.Status {
	case models.OrderStatusProcessing, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order status"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := h.Orders.Order(ctx, orderID)
	if err != nil {
		return fail(c, err)
	}

	role, _ := c.Get("role").(models.UserRole)
	if role == models.RoleStylist && !orderHasStylist(order, c.Get("userID").(primitive.ObjectID)) {
		return fail(c, errs.NotFound("order not found"))
	}

	if err := h.Store.UpdateOrderStatus(ctx, orderID, req.Status); err != nil {
		return fail(c, err)
	}

	h.Cache.Clear(ctx, cache.OrderKey(orderID.Hex()))
	h.Cache.Clear(ctx, cache.UserOrdersKey(order.Customer.Hex()))
	return c.JSON(http.StatusOK, map[string]string{"message": "Order status updated"})
}

// PayBalance starts a gateway charge for the remaining 40% of a custom order.
func (h *Handler) PayBalance(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	orderID, err := primitive.ObjectIDFromHex(c.Param("orderId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID format"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := h.Orders.PayBalance(ctx, orderID, userID, h.CallbackURL)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
