package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/events"
	"julianmorley.ca/con-plar/marketplace/pkg/metrics"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
	"julianmorley.ca/con-plar/marketplace/pkg/payments"
)

const maxSettleAttempts = 3

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CartStore interface {
	GetCart(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
}

type IntentStore interface {
	InsertIntent(ctx context.Context, intent *models.PaymentIntent) error
	FindIntent(ctx context.Context, buyerID bson.ObjectID, gatewayOrderID string) (*models.PaymentIntent, error)
	TransitionIntent(ctx context.Context, id bson.ObjectID, to models.PaymentStatus, paymentID, signature string, at time.Time) (bool, error)
	AttachOrder(ctx context.Context, intentID, orderID bson.ObjectID) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	GetOrderByIntent(ctx context.Context, intentID bson.ObjectID) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID bson.ObjectID, page, limit int) ([]models.Order, int64, error)
	ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, id bson.ObjectID, from, to models.OrderStatus, timeline models.Timeline, at time.Time) (*models.Order, error)
}

// Store is everything settlement writes. All of it must live in one
// database so a single transaction can span the three collections.
type Store interface {
	Transactor
	CartStore
	IntentStore
	OrderStore
}

type Buyers interface {
	GetCustomerByID(ctx context.Context, id bson.ObjectID) (*models.Customer, error)
}

type CartInvalidator interface {
	Invalidate(ctx context.Context, buyerID bson.ObjectID)
}

type Deps struct {
	Store     Store
	Buyers    Buyers
	Gateway   payments.Gateway
	Signer    *payments.Signer
	Publisher events.Publisher
	Carts     CartInvalidator
	Currency  string
	Logger    *zap.Logger
	Now       func() time.Time
}

type Engine struct {
	store     Store
	buyers    Buyers
	gateway   payments.Gateway
	signer    *payments.Signer
	publisher events.Publisher
	carts     CartInvalidator
	currency  string
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(d Deps) *Engine {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Engine{
		store:     d.Store,
		buyers:    d.Buyers,
		gateway:   d.Gateway,
		signer:    d.Signer,
		publisher: d.Publisher,
		carts:     d.Carts,
		currency:  d.Currency,
		logger:    d.Logger,
		now:       d.Now,
	}
}

// Checkout is what the buyer's client needs to open the gateway's payment form.
type Checkout struct {
	Intent       *models.PaymentIntent
	GatewayOrder *payments.GatewayOrder
	KeyID        string
}

// CreateIntent freezes the buyer's cart into a payment intent. The gateway
// order is created first; nothing is persisted if the gateway fails.
func (e *Engine) CreateIntent(ctx context.Context, buyerID bson.ObjectID) (*Checkout, error) {
	if buyerID.IsZero() {
		return nil, validation("user_id")
	}
	if _, err := e.buyers.GetCustomerByID(ctx, buyerID); err != nil {
		return nil, notFound(err, ErrUnknownBuyer)
	}

	cart, err := e.store.GetCart(ctx, buyerID)
	if errors.Is(err, mongo.ErrNotFound) {
		return nil, ErrNothingToPay
	}
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() || cart.Total <= 0 {
		return nil, ErrNothingToPay
	}

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	gwOrder, err := e.gateway.CreateOrder(ctx, payments.OrderRequest{
		AmountMinor: models.ToMinorUnits(cart.Total),
		Currency:    e.currency,
		Receipt:     receipt,
		Notes:       map[string]string{"buyer_id": buyerID.Hex()},
	})
	if err != nil {
		return nil, err
	}

	intent := models.NewPaymentIntent(cart, gwOrder.ID, receipt, e.currency)
	if err := e.store.InsertIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("persist payment intent: %w", err)
	}

	metrics.RecordIntentCreated(e.currency)
	e.logger.Info("payment intent created",
		zap.String("buyer_id", buyerID.Hex()),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.Float64("amount", intent.Amount))
	e.publish(ctx, events.SettlementEvent{
		EventType:       events.IntentCreated,
		BuyerID:         buyerID.Hex(),
		PaymentIntentID: intent.ID.Hex(),
		GatewayOrderID:  intent.GatewayOrderID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	})

	return &Checkout{Intent: intent, GatewayOrder: gwOrder, KeyID: e.gateway.KeyID()}, nil
}

type VerifyRequest struct {
	BuyerID          bson.ObjectID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	ShippingAddress  string
}

func (r VerifyRequest) validate() error {
	switch {
	case r.BuyerID.IsZero():
		return validation("user_id")
	case r.GatewayOrderID == "":
		return validation("razorpay_order_id")
	case r.GatewayPaymentID == "":
		return validation("razorpay_payment_id")
	case r.Signature == "":
		return validation("razorpay_signature")
	}
	return nil
}

// Settlement is the outcome of a verified callback. Replayed is set when the
// intent had already been settled and the existing order is returned.
type Settlement struct {
	Intent   *models.PaymentIntent
	Order    *models.Order
	Replayed bool
}

// VerifyCallback checks the gateway's signature and, when it matches,
// settles the intent: intent paid, order written and cart emptied in one
// transaction. A bad signature only ever marks an open intent failed.
func (e *Engine) VerifyCallback(ctx context.Context, req VerifyRequest) (*Settlement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	log := e.logger.With(
		zap.String("buyer_id", req.BuyerID.Hex()),
		zap.String("gateway_order_id", req.GatewayOrderID))

	intent, err := e.store.FindIntent(ctx, req.BuyerID, req.GatewayOrderID)
	if err != nil {
		return nil, notFound(err, ErrIntentNotFound)
	}

	if !e.signer.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		metrics.RecordSettlement(metrics.OutcomeBadSignature)
		if !intent.Status.IsOpen() {
			log.Warn("bad signature for closed intent", zap.String("status", string(intent.Status)))
			return nil, ErrInvalidSignature
		}
		failed, err := e.store.TransitionIntent(ctx, intent.ID, models.PaymentFailed,
			req.GatewayPaymentID, req.Signature, e.now())
		if err != nil {
			return nil, fmt.Errorf("record failed payment: %w", err)
		}
		if failed {
			log.Warn("payment signature mismatch, intent marked failed",
				zap.String("gateway_payment_id", req.GatewayPaymentID))
			e.publish(ctx, events.SettlementEvent{
				EventType:       events.PaymentFailed,
				BuyerID:         req.BuyerID.Hex(),
				PaymentIntentID: intent.ID.Hex(),
				GatewayOrderID:  intent.GatewayOrderID,
				Amount:          intent.Amount,
				Currency:        intent.Currency,
			})
		}
		return nil, ErrInvalidSignature
	}

	if !intent.Status.IsOpen() {
		return e.replay(ctx, intent)
	}

	shipping := e.shippingAddress(ctx, req)
	now := e.now()

	var (
		order           *models.Order
		won             bool
		nothingToSettle bool
	)
	settle := func(ctx context.Context) error {
		order, won, nothingToSettle = nil, false, false

		ok, err := e.store.TransitionIntent(ctx, intent.ID, models.PaymentPaid,
			req.GatewayPaymentID, req.Signature, now)
		if err != nil {
			return fmt.Errorf("mark intent paid: %w", err)
		}
		if !ok {
			return nil
		}
		won = true

		cart, err := e.store.GetCart(ctx, req.BuyerID)
		if err != nil && !errors.Is(err, mongo.ErrNotFound) {
			return fmt.Errorf("load cart: %w", err)
		}
		if cart == nil || cart.IsEmpty() {
			// the intent stays paid; the payment went through at the gateway
			nothingToSettle = true
			return nil
		}
		if models.RoundMoney(cart.Total) != models.RoundMoney(intent.Amount) {
			log.Warn("cart changed after checkout, settling the amount paid",
				zap.Float64("cart_total", cart.Total),
				zap.Float64("intent_amount", intent.Amount))
		}

		settled := *intent
		settled.Resolve(models.PaymentPaid, req.GatewayPaymentID, req.Signature, now)
		order = models.NewOrderFromIntent(&settled, shipping, now)
		if err := e.store.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		cart.Empty()
		if err := e.store.SaveCart(ctx, cart); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := e.store.AttachOrder(ctx, intent.ID, order.ID); err != nil {
			return fmt.Errorf("attach order: %w", err)
		}
		return nil
	}
	for attempt := 1; ; attempt++ {
		err = e.store.WithTransaction(ctx, settle)
		if !errors.Is(err, mongo.ErrStaleWrite) || attempt == maxSettleAttempts {
			break
		}
		// a cart write landed between our read and our save; the
		// transaction rolled back, so the intent is still open
		log.Debug("cart changed during settlement, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		metrics.RecordSettlement(metrics.OutcomeError)
		log.Error("settlement transaction failed", zap.Error(err))
		return nil, err
	}

	if !won {
		// another callback settled this intent first
		current, err := e.store.FindIntent(ctx, req.BuyerID, req.GatewayOrderID)
		if err != nil {
			return nil, notFound(err, ErrIntentNotFound)
		}
		return e.replay(ctx, current)
	}

	intent.Resolve(models.PaymentPaid, req.GatewayPaymentID, req.Signature, now)
	if e.carts != nil {
		e.carts.Invalidate(ctx, req.BuyerID)
	}

	if nothingToSettle {
		metrics.RecordSettlement(metrics.OutcomeNothingToSettle)
		log.Warn("payment captured but cart was empty, needs reconciliation",
			zap.String("gateway_payment_id", req.GatewayPaymentID),
			zap.Float64("amount", intent.Amount))
		return nil, ErrNothingToSettle
	}

	intent.OrderID = &order.ID
	metrics.RecordSettlement(metrics.OutcomePaid)
	log.Info("payment settled",
		zap.String("order_id", order.ID.Hex()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("item_count", order.GetItemCount()),
		zap.Float64("amount", order.TotalAmount))
	e.publish(ctx, events.SettlementEvent{
		EventType:       events.OrderPlaced,
		BuyerID:         req.BuyerID.Hex(),
		PaymentIntentID: intent.ID.Hex(),
		OrderID:         order.ID.Hex(),
		GatewayOrderID:  intent.GatewayOrderID,
		OrderStatus:     string(order.Status),
		Amount:          order.TotalAmount,
		Currency:        order.Currency,
	})

	return &Settlement{Intent: intent, Order: order}, nil
}

// replay answers a callback for an intent that is already closed.
func (e *Engine) replay(ctx context.Context, intent *models.PaymentIntent) (*Settlement, error) {
	if intent.Status == models.PaymentFailed {
		metrics.RecordSettlement(metrics.OutcomeIntentClosed)
		return nil, ErrIntentClosed
	}

	order, err := e.store.GetOrderByIntent(ctx, intent.ID)
	if errors.Is(err, mongo.ErrNotFound) {
		metrics.RecordSettlement(metrics.OutcomeNothingToSettle)
		return nil, ErrNothingToSettle
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordSettlement(metrics.OutcomeReplayed)
	return &Settlement{Intent: intent, Order: order, Replayed: true}, nil
}

func (e *Engine) shippingAddress(ctx context.Context, req VerifyRequest) string {
	if addr := strings.TrimSpace(req.ShippingAddress); addr != "" {
		return addr
	}
	buyer, err := e.buyers.GetCustomerByID(ctx, req.BuyerID)
	if err != nil {
		return ""
	}
	if addr := buyer.GetDefaultAddress(); addr != nil {
		return addr.String()
	}
	return ""
}

func (e *Engine) publish(ctx context.Context, event events.SettlementEvent) {
	event.OccurredAt = e.now()
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish settlement event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, mongo.ErrNotFound) {
		return sentinel
	}
	return err
}
