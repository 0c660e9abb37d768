package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (s *Store) GetCart(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error) {
	return findOne[models.Cart](ctx, s.collection(cartsCollection), bson.D{{Key: "buyer_id", Value: buyerID}})
}

// SaveCart upserts the buyer's cart, replacing lines and totals. The write
// only lands if the stored version is still the one the cart was read at;
// otherwise it returns ErrStaleWrite and the caller must re-read.
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	filter := bson.D{
		{Key: "buyer_id", Value: cart.BuyerID},
		{Key: "version", Value: cart.Version},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "items", Value: cart.Items},
			{Key: "subtotal", Value: cart.Subtotal},
			{Key: "tax", Value: cart.Tax},
			{Key: "platform_fee", Value: cart.PlatformFee},
			{Key: "total", Value: cart.Total},
			{Key: "item_count", Value: cart.ItemCount},
			{Key: "updated_at", Value: cart.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "created_at", Value: cart.CreatedAt},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}

	// a version mismatch misses the filter and the upsert then collides
	// with the unique buyer_id index
	res, err := s.collection(cartsCollection).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return ErrStaleWrite
	}
	if err != nil {
		return err
	}
	cart.Version++
	if id, ok := res.UpsertedID.(bson.ObjectID); ok {
		cart.ID = id
	}
	return nil
}
