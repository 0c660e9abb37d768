package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	_, err := s.collection(ordersCollection).InsertOne(ctx, order)
	return insertErr(err)
}

func (s *Store) GetOrder(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	return findOne[models.Order](ctx, s.collection(ordersCollection), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetOrderByIntent(ctx context.Context, intentID bson.ObjectID) (*models.Order, error) {
	return findOne[models.Order](ctx, s.collection(ordersCollection), bson.D{{Key: "payment_intent_id", Value: intentID}})
}

func (s *Store) ListOrdersByBuyer(ctx context.Context, buyerID bson.ObjectID, page, limit int) ([]models.Order, int64, error) {
	return findPage[models.Order](ctx, s.collection(ordersCollection), bson.D{{Key: "buyer_id", Value: buyerID}}, page, limit)
}

func (s *Store) ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "order_status", Value: status})
	}
	return findPage[models.Order](ctx, s.collection(ordersCollection), filter, page, limit)
}

// UpdateOrderStatus moves an order from one status to another. Only the
// status, timeline and updated_at are written. ErrStaleWrite means the
// order exists but is no longer in status from.
func (s *Store) UpdateOrderStatus(ctx context.Context, id bson.ObjectID, from, to models.OrderStatus, timeline models.Timeline, at time.Time) (*models.Order, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "order_status", Value: from},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "order_status", Value: to},
		{Key: "timeline", Value: timeline},
		{Key: "updated_at", Value: at},
	}}}

	var updated models.Order
	err := s.collection(ordersCollection).
		FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleWrite
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
