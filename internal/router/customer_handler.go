package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
)

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Customer  *models.Customer `json:"customer"`
}

func (h *Handler) Register(c *gin.Context) {
	var req models.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", global.FieldError("body", err.Error(), "validation_error"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err, "Failed to create account")
		return
	}

	customer := &models.Customer{
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Password:      hashed,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		Role:          req.Role,
		Addresses:     []models.Address{},
		AccountStatus: "active",
	}
	if customer.Role == "" {
		customer.Role = models.RoleBuyer
	}
	if req.Address != nil {
		customer.AddAddress(*req.Address)
	}

	if err := h.store.CreateCustomer(c.Request.Context(), customer); err != nil {
		if errors.Is(err, mongo.ErrDuplicate) {
			c.JSON(http.StatusConflict, global.ErrorResponse("Email already registered", global.FieldError(
				"email", "an account with this email already exists", "duplicate")))
			return
		}
		h.fail(c, err, "Failed to create account")
		return
	}

	h.respondWithToken(c, http.StatusCreated, customer)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", global.FieldError("body", err.Error(), "validation_error"))
		return
	}

	customer, err := h.store.GetCustomerByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, mongo.ErrNotFound) {
		h.fail(c, err, "Failed to log in")
		return
	}
	if customer == nil || auth.CheckPassword(customer.Password, req.Password) != nil || !customer.IsActive() {
		c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid email or password", nil))
		return
	}

	h.respondWithToken(c, http.StatusOK, customer)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, customer *models.Customer) {
	token, expires, err := h.issuer.Issue(customer)
	if err != nil {
		h.fail(c, err, "Failed to issue token")
		return
	}
	h.logger.Info("token issued", zap.String("customer_id", customer.ID.Hex()), zap.String("role", string(customer.Role)))
	c.JSON(status, global.SuccessResponse(tokenResponse{Token: token, ExpiresAt: expires, Customer: customer}))
}

func (h *Handler) GetCustomerByID(c *gin.Context) {
	id, ok := buyerParam(c, c.Param("id"))
	if !ok {
		return
	}

	customer, err := h.store.GetCustomerByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get customer")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(customer))
}

func (h *Handler) AddCustomerAddress(c *gin.Context) {
	id, ok := buyerParam(c, c.Param("id"))
	if !ok {
		return
	}
	var address models.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		badRequest(c, "Invalid address", global.FieldError("body", err.Error(), "validation_error"))
		return
	}

	ctx := c.Request.Context()
	customer, err := h.store.GetCustomerByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to get customer")
		return
	}
	customer.AddAddress(address)
	if err := h.store.SetCustomerAddresses(ctx, id, customer.Addresses); err != nil {
		h.fail(c, err, "Failed to add address")
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(customer))
}

func (h *Handler) GetAllCustomers(c *gin.Context) {
	page, limit := pagination(c)
	customers, total, err := h.store.ListCustomers(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to list customers")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(paged(customers, total, page, limit)))
}
