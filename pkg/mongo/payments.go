package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (s *Store) InsertIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID.IsZero() {
		intent.ID = bson.NewObjectID()
	}
	_, err := s.collection(intentsCollection).InsertOne(ctx, intent)
	return insertErr(err)
}

// FindIntent looks an intent up by its owner and the gateway's order id.
func (s *Store) FindIntent(ctx context.Context, buyerID bson.ObjectID, gatewayOrderID string) (*models.PaymentIntent, error) {
	return findOne[models.PaymentIntent](ctx, s.collection(intentsCollection), bson.D{
		{Key: "buyer_id", Value: buyerID},
		{Key: "gateway_order_id", Value: gatewayOrderID},
	})
}

// TransitionIntent moves an open intent to paid or failed. It reports false,
// without error, when the intent was no longer open.
func (s *Store) TransitionIntent(ctx context.Context, id bson.ObjectID, to models.PaymentStatus, paymentID, signature string, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{models.PaymentCreated, models.PaymentPending}}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: to},
		{Key: "gateway_payment_id", Value: paymentID},
		{Key: "gateway_signature", Value: signature},
		{Key: "resolved_at", Value: at},
		{Key: "updated_at", Value: at},
	}}}

	res, err := s.collection(intentsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) AttachOrder(ctx context.Context, intentID, orderID bson.ObjectID) error {
	res, err := s.collection(intentsCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: intentID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "order_id", Value: orderID}}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIntents pages through intents, optionally filtered by status.
func (s *Store) ListIntents(ctx context.Context, status models.PaymentStatus, page, limit int) ([]models.PaymentIntent, int64, error) {
	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	return findPage[models.PaymentIntent](ctx, s.collection(intentsCollection), filter, page, limit)
}
