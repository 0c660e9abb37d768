package cart

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrCartNotFound    = fmt.Errorf("cart %w", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("cart item %w", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrBuyerNotFound   = fmt.Errorf("buyer %w", ErrNotFound)
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrConflict        = errors.New("cart was modified concurrently")
)

const maxSaveAttempts = 3

type Repository interface {
	GetCart(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id bson.ObjectID) (*models.Product, error)
}

type Buyers interface {
	GetCustomerByID(ctx context.Context, id bson.ObjectID) (*models.Customer, error)
}

type Cache interface {
	Get(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error)
	Set(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, buyerID bson.ObjectID) error
}

// Service owns every cart mutation. Totals are recomputed from scratch after
// each change and the cached copy is dropped once the write lands.
type Service struct {
	repo    Repository
	catalog Catalog
	buyers  Buyers
	cache   Cache
	pricing models.Pricing
	logger  *zap.Logger
}

func NewService(repo Repository, catalog Catalog, buyers Buyers, cache Cache, pricing models.Pricing, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		buyers:  buyers,
		cache:   cache,
		pricing: pricing,
		logger:  logger,
	}
}

// Get returns the buyer's cart, or an unsaved empty cart when none exists.
func (s *Service) Get(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error) {
	if err := s.checkBuyer(ctx, buyerID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, buyerID); err == nil {
			return cached, nil
		}
	}

	cart, err := s.repo.GetCart(ctx, buyerID)
	if errors.Is(err, mongo.ErrNotFound) {
		return models.NewCart(buyerID), nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cart); err != nil {
			s.logger.Warn("failed to cache cart", zap.String("buyer_id", buyerID.Hex()), zap.Error(err))
		}
	}
	return cart, nil
}

func (s *Service) AddItem(ctx context.Context, buyerID, productID bson.ObjectID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if err := s.checkBuyer(ctx, buyerID); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, mongo.ErrNotFound) || (err == nil && !product.IsAvailable()) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	cart, err := s.update(ctx, buyerID, true, func(cart *models.Cart) error {
		cart.AddItem(product, quantity, s.pricing)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.String("buyer_id", buyerID.Hex()),
		zap.String("product_id", productID.Hex()),
		zap.Int("quantity", quantity))
	return cart, nil
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateItem(ctx context.Context, buyerID, productID bson.ObjectID, quantity int) (*models.Cart, error) {
	return s.mutate(ctx, buyerID, func(cart *models.Cart) error {
		return cart.SetQuantity(productID, quantity, s.pricing)
	})
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, productID bson.ObjectID) (*models.Cart, error) {
	return s.mutate(ctx, buyerID, func(cart *models.Cart) error {
		return cart.RemoveItem(productID, s.pricing)
	})
}

func (s *Service) Clear(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error) {
	return s.mutate(ctx, buyerID, func(cart *models.Cart) error {
		cart.Empty()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, buyerID bson.ObjectID, change func(*models.Cart) error) (*models.Cart, error) {
	if err := s.checkBuyer(ctx, buyerID); err != nil {
		return nil, err
	}
	return s.update(ctx, buyerID, false, change)
}

// update reads the cart, applies change and saves it at the version it was
// read at. A save that loses to a concurrent write (a settlement emptying
// the cart, say) re-reads and applies change again.
func (s *Service) update(ctx context.Context, buyerID bson.ObjectID, create bool, change func(*models.Cart) error) (*models.Cart, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		cart, err := s.repo.GetCart(ctx, buyerID)
		if errors.Is(err, mongo.ErrNotFound) {
			if !create {
				return nil, ErrCartNotFound
			}
			cart = models.NewCart(buyerID)
		} else if err != nil {
			return nil, err
		}

		if err := change(cart); err != nil {
			if errors.Is(err, models.ErrLineNotFound) {
				return nil, ErrItemNotFound
			}
			return nil, err
		}

		err = s.repo.SaveCart(ctx, cart)
		if errors.Is(err, mongo.ErrStaleWrite) {
			s.logger.Debug("cart changed underneath update, retrying",
				zap.String("buyer_id", buyerID.Hex()),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		s.Invalidate(ctx, buyerID)
		return cart, nil
	}
	return nil, ErrConflict
}

// Invalidate drops the cached copy of a buyer's cart.
func (s *Service) Invalidate(ctx context.Context, buyerID bson.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		s.logger.Warn("failed to invalidate cart cache", zap.String("buyer_id", buyerID.Hex()), zap.Error(err))
	}
}

func (s *Service) checkBuyer(ctx context.Context, buyerID bson.ObjectID) error {
	_, err := s.buyers.GetCustomerByID(ctx, buyerID)
	if errors.Is(err, mongo.ErrNotFound) {
		return ErrBuyerNotFound
	}
	return err
}
