package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	customersCollection = "customers"
	productsCollection  = "products"
	cartsCollection     = "carts"
	intentsCollection   = "payment_intents"
	ordersCollection    = "orders"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrDuplicate  = errors.New("duplicate document")
	ErrStaleWrite = errors.New("document changed concurrently")
)

// Store owns the client and the marketplace database; every repository method hangs off it.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", database))
	return NewStore(client, database, logger), nil
}

func NewStore(client *mongo.Client, database string, logger *zap.Logger) *Store {
	return &Store{client: client, db: client.Database(database), logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// WithTransaction runs fn inside a multi-document transaction. Repository
// calls made with the ctx handed to fn join the transaction; the driver
// retries fn on transient errors, so fn must be safe to re-run.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}
