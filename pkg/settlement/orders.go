package settlement

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/events"
	"julianmorley.ca/con-plar/marketplace/pkg/metrics"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
)

const maxStatusAttempts = 3

// Orders runs the post-settlement lifecycle. Status updates are conditional
// on the status that was read, so two concurrent updates cannot both apply.
type Orders struct {
	store     OrderStore
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrders(store OrderStore, publisher events.Publisher, logger *zap.Logger) *Orders {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orders{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orders) Get(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	order, err := o.store.GetOrder(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return order, nil
}

func (o *Orders) ListBuyerOrders(ctx context.Context, buyerID bson.ObjectID, page, limit int) ([]models.Order, int64, error) {
	return o.store.ListOrdersByBuyer(ctx, buyerID, page, limit)
}

func (o *Orders) ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, validation("valid status")
	}
	return o.store.ListOrders(ctx, status, page, limit)
}

// AdvanceStatus moves an order forward along placed, confirmed, shipped,
// delivered, or cancels it. A seller may only move orders holding at least
// one of their lines; a zero sellerID skips that check.
func (o *Orders) AdvanceStatus(ctx context.Context, sellerID, id bson.ObjectID, target models.OrderStatus) (*models.Order, error) {
	return o.transition(ctx, id, func(order *models.Order) error {
		if !sellerID.IsZero() && !order.HasSeller(sellerID) {
			return ErrOrderNotFound
		}
		return models.CheckTransition(order.Status, target)
	}, target)
}

// Cancel cancels a buyer's order. A zero buyerID skips the ownership check.
func (o *Orders) Cancel(ctx context.Context, buyerID, id bson.ObjectID) (*models.Order, error) {
	return o.transition(ctx, id, func(order *models.Order) error {
		if !buyerID.IsZero() && order.BuyerID != buyerID {
			return ErrOrderNotFound
		}
		if !order.Status.CanCancel() {
			return ErrCannotCancel
		}
		return nil
	}, models.OrderCancelled)
}

func (o *Orders) transition(ctx context.Context, id bson.ObjectID, check func(*models.Order) error, target models.OrderStatus) (*models.Order, error) {
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		order, err := o.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := check(order); err != nil {
			return nil, err
		}

		now := o.now()
		timeline := order.Timeline
		timeline.Stamp(target, now)

		updated, err := o.store.UpdateOrderStatus(ctx, id, order.Status, target, timeline, now)
		if errors.Is(err, mongo.ErrStaleWrite) {
			o.logger.Debug("order status changed underneath update, retrying",
				zap.String("order_id", id.Hex()),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, notFound(err, ErrOrderNotFound)
		}

		metrics.RecordOrderTransition(string(target))
		o.logger.Info("order status changed",
			zap.String("order_id", id.Hex()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(target)))
		event := events.SettlementEvent{
			EventType:       events.OrderStatusChanged,
			BuyerID:         updated.BuyerID.Hex(),
			PaymentIntentID: updated.PaymentIntentID.Hex(),
			OrderID:         updated.ID.Hex(),
			OrderStatus:     string(updated.Status),
			Amount:          updated.TotalAmount,
			Currency:        updated.Currency,
			OccurredAt:      now,
		}
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.Warn("failed to publish order event", zap.Error(err))
		}
		return updated, nil
	}
	return nil, ErrConflict
}
