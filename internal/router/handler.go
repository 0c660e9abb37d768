package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/ai"
	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/cart"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/logger"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
	"julianmorley.ca/con-plar/marketplace/pkg/redis"
	"julianmorley.ca/con-plar/marketplace/pkg/settlement"
)

// Store is the persistence the handlers read directly. Cart, settlement and
// order writes go through their services instead.
type Store interface {
	Ping(ctx context.Context) error
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomerByID(ctx context.Context, id bson.ObjectID) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	SetCustomerAddresses(ctx context.Context, id bson.ObjectID, addresses []models.Address) error
	ListCustomers(ctx context.Context, page, limit int) ([]models.Customer, int64, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
	ListProducts(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error)
	ListIntents(ctx context.Context, status models.PaymentStatus, page, limit int) ([]models.PaymentIntent, int64, error)
	SalesReport(ctx context.Context) (*models.SalesReport, error)
}

type Handler struct {
	store    Store
	carts    *cart.Service
	engine   *settlement.Engine
	orders   *settlement.Orders
	issuer   *auth.Issuer
	products *redis.ProductCache
	ai       *ai.Client
	currency string
	logger   *zap.Logger
}

type HandlerDeps struct {
	Store    Store
	Carts    *cart.Service
	Engine   *settlement.Engine
	Orders   *settlement.Orders
	Issuer   *auth.Issuer
	Products *redis.ProductCache // optional
	AI       *ai.Client
	Currency string
	Logger   *zap.Logger
}

func NewHandler(d HandlerDeps) *Handler {
	return &Handler{
		store:    d.Store,
		carts:    d.Carts,
		engine:   d.Engine,
		orders:   d.Orders,
		issuer:   d.Issuer,
		products: d.Products,
		ai:       d.AI,
		currency: d.Currency,
		logger:   d.Logger,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Database connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "database": "Connected"}))
}

// statusFor maps service errors onto HTTP status codes. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, settlement.ErrValidation),
		errors.Is(err, settlement.ErrInvalidSignature),
		errors.Is(err, settlement.ErrNothingToPay),
		errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, mongo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrTerminalState),
		errors.Is(err, settlement.ErrInvalidTransition),
		errors.Is(err, settlement.ErrCannotCancel),
		errors.Is(err, settlement.ErrConflict),
		errors.Is(err, cart.ErrConflict),
		errors.Is(err, settlement.ErrNothingToSettle),
		errors.Is(err, settlement.ErrIntentClosed),
		errors.Is(err, mongo.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Server-side failures are logged and the
// client only sees fallback.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		fields := []zap.Field{zap.Error(err), zap.String("path", c.FullPath())}
		if traceID := logger.TraceID(c); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		h.logger.Error(fallback, fields...)
		_ = c.Error(err)
		message = fallback
		if status == http.StatusBadGateway {
			message = "Payment gateway unavailable, please try again"
		}
	}
	c.JSON(status, global.ErrorResponse(message, nil))
}

func badRequest(c *gin.Context, message string, errs []global.ValidationError) {
	c.JSON(http.StatusBadRequest, global.ErrorResponse(message, errs))
}

func parseObjectID(c *gin.Context, raw, field string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		badRequest(c, "Invalid "+field, global.FieldError(field, field+" must be a valid ObjectID", "invalid_format"))
		return bson.NilObjectID, false
	}
	return id, true
}

// buyerParam resolves a user id and checks the caller may act for it.
func buyerParam(c *gin.Context, raw string) (bson.ObjectID, bool) {
	buyerID, ok := parseObjectID(c, raw, "user_id")
	if !ok {
		return bson.NilObjectID, false
	}
	return buyerID, actingFor(c, buyerID)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func paged(items interface{}, total int64, page, limit int) global.Page {
	return global.Page{Items: items, Total: total, Page: page, Limit: limit}
}
