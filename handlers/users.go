package handlers

import (
	"context"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/stylemart/stylemart-backend-go/middleware"
	"github.com/stylemart/stylemart-backend-go/models"
	"github.com/stylemart/stylemart-backend-go/wallet"
)

func (h *Handler) Register(c echo.Context) error {
	var user models.User
	if err := c.Bind(&user); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	if !isValidEmail(user.Email) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid email format"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.Store.UserByEmail(ctx, user.Email); err == nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Email already registered"})
	}

	if len(user.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Password must be at least 8 characters"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to process password"})
	}
	user.Password = string(hashedPassword)
	user.ID = primitive.NewObjectID()
	if user.Role != models.RoleStylist {
		user.Role = models.RoleCustomer
	}
	user.WalletBalance = 0
	user.Addresses = []models.Address{}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	if err := h.Store.InsertUser(ctx, &user); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create user"})
	}

	user.Password = ""
	return c.JSON(http.StatusCreated, user)
}

// Helper function to validate email format
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func (h *Handler) Login(c echo.Context) error {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&loginRequest); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := h.Store.UserByEmail(ctx, loginRequest.Email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(loginRequest.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	}

	token, err := middleware.GenerateToken(user.ID, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

// GetProfile retrieves the user's profile
func (h *Handler) GetProfile(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	user, err := h.Store.UserByID(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the user's profile information
func (h *Handler) UpdateProfile(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var updateData struct {
		Name        string `json:"name"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&updateData); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	err := h.Store.UpdateUser(c.Request().Context(), userID, bson.M{
		"name":        updateData.Name,
		"phoneNumber": updateData.PhoneNumber,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

// AddAddress appends a shipping/billing address
func (h *Handler) AddAddress(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var address models.Address
	if err := c.Bind(&address); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid address data: " + err.Error()})
	}

	if address.ID.IsZero() {
		address.ID = primitive.NewObjectID()
	}
	if address.Type == "" {
		address.Type = "shipping"
	}

	user, err := h.Store.UserByID(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}

	addresses := append(user.Addresses, address)
	if err := h.Store.UpdateUser(c.Request().Context(), userID, bson.M{"addresses": addresses}); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, address)
}

// AdminCreditWallet lets an admin top up a user's wallet directly; the credit
// still flows through the ledger so the audit trail holds.
func (h *Handler) AdminCreditWallet(c echo.Context) error {
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := h.Wallet.Credit(ctx, wallet.Entry{
		UserID:   userID,
		Amount:   req.Amount,
		Purpose:  models.PurposeWalletFunding,
		Metadata: map[string]any{"source": "admin", "reason": req.Reason},
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tx)
}

// AdminReverseTransaction moves a completed transaction to reversed with a
// compensating ledger entry.
func (h *Handler) AdminReverseTransaction(c echo.Context) error {
	reference := c.Param("reference")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil && err != echo.ErrUnsupportedMediaType {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reversal, err := h.Wallet.Reverse(ctx, reference, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reversal)
}
