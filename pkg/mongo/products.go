package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = bson.NewObjectID()
	}
	_, err := s.collection(productsCollection).InsertOne(ctx, product)
	return insertErr(err)
}

func (s *Store) GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	return findOne[models.Product](ctx, s.collection(productsCollection), bson.D{{Key: "_id", Value: id}})
}

// ListProducts pages through active listings, optionally by category.
func (s *Store) ListProducts(ctx context.Context, category string, page, limit int) ([]models.Product, int64, error) {
	filter := bson.D{{Key: "status", Value: "active"}}
	if category != "" {
		filter = append(filter, bson.E{Key: "category", Value: category})
	}
	return findPage[models.Product](ctx, s.collection(productsCollection), filter, page, limit)
}
