package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (s *Store) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID.IsZero() {
		customer.ID = bson.NewObjectID()
	}
	customer.Email = strings.ToLower(customer.Email)
	customer.SetTimestamps()
	_, err := s.collection(customersCollection).InsertOne(ctx, customer)
	return insertErr(err)
}

func (s *Store) GetCustomerByID(ctx context.Context, id bson.ObjectID) (*models.Customer, error) {
	return findOne[models.Customer](ctx, s.collection(customersCollection), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return findOne[models.Customer](ctx, s.collection(customersCollection), bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

// SetCustomerAddresses replaces the customer's address book.
func (s *Store) SetCustomerAddresses(ctx context.Context, id bson.ObjectID, addresses []models.Address) error {
	res, err := s.collection(customersCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "addresses", Value: addresses},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, page, limit int) ([]models.Customer, int64, error) {
	return findPage[models.Customer](ctx, s.collection(customersCollection), bson.D{}, page, limit)
}
