// Package memstore is an in-process stand-in for the Mongo store, used by
// service, handler and acceptance tests. Transactions are serialised and
// rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
)

type data struct {
	customers map[bson.ObjectID]models.Customer
	products  map[bson.ObjectID]models.Product
	carts     map[bson.ObjectID]models.Cart // keyed by buyer
	intents   map[bson.ObjectID]models.PaymentIntent
	orders    map[bson.ObjectID]models.Order
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    data

	failMu sync.Mutex
	fail   map[string]error
}

func New() *Store {
	return &Store{
		d: data{
			customers: map[bson.ObjectID]models.Customer{},
			products:  map[bson.ObjectID]models.Product{},
			carts:     map[bson.ObjectID]models.Cart{},
			intents:   map[bson.ObjectID]models.PaymentIntent{},
			orders:    map[bson.ObjectID]models.Order{},
		},
		fail: map[string]error{},
	}
}

// FailNext makes the next call to the named method return err.
func (s *Store) FailNext(method string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.fail[method] = err
}

func (s *Store) injected(method string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.fail[method]
	delete(s.fail, method)
	return err
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (d data) clone() data {
	out := data{
		customers: make(map[bson.ObjectID]models.Customer, len(d.customers)),
		products:  make(map[bson.ObjectID]models.Product, len(d.products)),
		carts:     make(map[bson.ObjectID]models.Cart, len(d.carts)),
		intents:   make(map[bson.ObjectID]models.PaymentIntent, len(d.intents)),
		orders:    make(map[bson.ObjectID]models.Order, len(d.orders)),
	}
	for k, v := range d.customers {
		out.customers[k] = cloneCustomer(v)
	}
	for k, v := range d.products {
		out.products[k] = v
	}
	for k, v := range d.carts {
		out.carts[k] = cloneCart(v)
	}
	for k, v := range d.intents {
		out.intents[k] = cloneIntent(v)
	}
	for k, v := range d.orders {
		out.orders[k] = cloneOrder(v)
	}
	return out
}

func cloneCustomer(c models.Customer) models.Customer {
	c.Addresses = slices.Clone(c.Addresses)
	return c
}

func cloneCart(c models.Cart) models.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return c
}

func cloneIntent(p models.PaymentIntent) models.PaymentIntent {
	p.Items = slices.Clone(p.Items)
	return p
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func page[T any](items []T, pageNum, limit int, createdAt func(T) time.Time) ([]T, int64) {
	if pageNum < 1 {
		pageNum = 1
	}
	if limit < 1 {
		limit = 20
	}
	slices.SortStableFunc(items, func(a, b T) int {
		return createdAt(b).Compare(createdAt(a))
	})
	total := int64(len(items))
	start := (pageNum - 1) * limit
	if start >= len(items) {
		return []T{}, total
	}
	end := min(start+limit, len(items))
	return items[start:end], total
}

// Customers

func (s *Store) CreateCustomer(_ context.Context, customer *models.Customer) error {
	if err := s.injected("CreateCustomer"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	customer.Email = strings.ToLower(customer.Email)
	for _, c := range s.d.customers {
		if c.Email == customer.Email {
			return mongo.ErrDuplicate
		}
	}
	if customer.ID.IsZero() {
		customer.ID = bson.NewObjectID()
	}
	customer.SetTimestamps()
	s.d.customers[customer.ID] = cloneCustomer(*customer)
	return nil
}

func (s *Store) GetCustomerByID(_ context.Context, id bson.ObjectID) (*models.Customer, error) {
	if err := s.injected("GetCustomerByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.customers[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	c = cloneCustomer(c)
	return &c, nil
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, c := range s.d.customers {
		if c.Email == email {
			c = cloneCustomer(c)
			return &c, nil
		}
	}
	return nil, mongo.ErrNotFound
}

func (s *Store) SetCustomerAddresses(_ context.Context, id bson.ObjectID, addresses []models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.customers[id]
	if !ok {
		return mongo.ErrNotFound
	}
	c.Addresses = slices.Clone(addresses)
	c.UpdatedAt = time.Now()
	s.d.customers[id] = c
	return nil
}

func (s *Store) ListCustomers(_ context.Context, pageNum, limit int) ([]models.Customer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Customer, 0, len(s.d.customers))
	for _, c := range s.d.customers {
		items = append(items, cloneCustomer(c))
	}
	out, total := page(items, pageNum, limit, func(c models.Customer) time.Time { return c.CreatedAt })
	return out, total, nil
}

// Products

func (s *Store) CreateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = bson.NewObjectID()
	}
	if _, ok := s.d.products[product.ID]; ok {
		return mongo.ErrDuplicate
	}
	s.d.products[product.ID] = *product
	return nil
}

func (s *Store) GetProduct(_ context.Context, id bson.ObjectID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.d.products[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, category string, pageNum, limit int) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []models.Product{}
	for _, p := range s.d.products {
		if p.Status != "active" || (category != "" && p.Category != category) {
			continue
		}
		items = append(items, p)
	}
	out, total := page(items, pageNum, limit, func(p models.Product) time.Time { return p.CreatedAt })
	return out, total, nil
}

// Carts

func (s *Store) GetCart(_ context.Context, buyerID bson.ObjectID) (*models.Cart, error) {
	if err := s.injected("GetCart"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.carts[buyerID]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	c = cloneCart(c)
	return &c, nil
}

func (s *Store) SaveCart(_ context.Context, cart *models.Cart) error {
	if err := s.injected("SaveCart"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.d.carts[cart.BuyerID]
	if existing.Version != cart.Version {
		return mongo.ErrStaleWrite
	}
	if ok {
		cart.ID = existing.ID
		cart.CreatedAt = existing.CreatedAt
	} else if cart.ID.IsZero() {
		cart.ID = bson.NewObjectID()
	}
	cart.Version++
	s.d.carts[cart.BuyerID] = cloneCart(*cart)
	return nil
}

// Payment intents

func (s *Store) InsertIntent(_ context.Context, intent *models.PaymentIntent) error {
	if err := s.injected("InsertIntent"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent.ID.IsZero() {
		intent.ID = bson.NewObjectID()
	}
	for _, p := range s.d.intents {
		if p.GatewayOrderID == intent.GatewayOrderID {
			return mongo.ErrDuplicate
		}
	}
	s.d.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (s *Store) FindIntent(_ context.Context, buyerID bson.ObjectID, gatewayOrderID string) (*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.d.intents {
		if p.BuyerID == buyerID && p.GatewayOrderID == gatewayOrderID {
			p = cloneIntent(p)
			return &p, nil
		}
	}
	return nil, mongo.ErrNotFound
}

func (s *Store) TransitionIntent(_ context.Context, id bson.ObjectID, to models.PaymentStatus, paymentID, signature string, at time.Time) (bool, error) {
	if err := s.injected("TransitionIntent"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.intents[id]
	if !ok || !p.Status.IsOpen() {
		return false, nil
	}
	p.Resolve(to, paymentID, signature, at)
	s.d.intents[id] = p
	return true, nil
}

func (s *Store) AttachOrder(_ context.Context, intentID, orderID bson.ObjectID) error {
	if err := s.injected("AttachOrder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.intents[intentID]
	if !ok {
		return mongo.ErrNotFound
	}
	p.OrderID = &orderID
	s.d.intents[intentID] = p
	return nil
}

func (s *Store) ListIntents(_ context.Context, status models.PaymentStatus, pageNum, limit int) ([]models.PaymentIntent, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []models.PaymentIntent{}
	for _, p := range s.d.intents {
		if status == "" || p.Status == status {
			items = append(items, cloneIntent(p))
		}
	}
	out, total := page(items, pageNum, limit, func(p models.PaymentIntent) time.Time { return p.CreatedAt })
	return out, total, nil
}

// Orders

func (s *Store) InsertOrder(_ context.Context, order *models.Order) error {
	if err := s.injected("InsertOrder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = bson.NewObjectID()
	}
	for _, o := range s.d.orders {
		if o.PaymentIntentID == order.PaymentIntentID || o.OrderNumber == order.OrderNumber {
			return mongo.ErrDuplicate
		}
	}
	s.d.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id bson.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.d.orders[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) GetOrderByIntent(_ context.Context, intentID bson.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.d.orders {
		if o.PaymentIntentID == intentID {
			o = cloneOrder(o)
			return &o, nil
		}
	}
	return nil, mongo.ErrNotFound
}

func (s *Store) ListOrdersByBuyer(_ context.Context, buyerID bson.ObjectID, pageNum, limit int) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []models.Order{}
	for _, o := range s.d.orders {
		if o.BuyerID == buyerID {
			items = append(items, cloneOrder(o))
		}
	}
	out, total := page(items, pageNum, limit, func(o models.Order) time.Time { return o.CreatedAt })
	return out, total, nil
}

func (s *Store) ListOrders(_ context.Context, status models.OrderStatus, pageNum, limit int) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []models.Order{}
	for _, o := range s.d.orders {
		if status == "" || o.Status == status {
			items = append(items, cloneOrder(o))
		}
	}
	out, total := page(items, pageNum, limit, func(o models.Order) time.Time { return o.CreatedAt })
	return out, total, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id bson.ObjectID, from, to models.OrderStatus, timeline models.Timeline, at time.Time) (*models.Order, error) {
	if err := s.injected("UpdateOrderStatus"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.orders[id]
	if !ok {
		return nil, mongo.ErrNotFound
	}
	if o.Status != from {
		return nil, mongo.ErrStaleWrite
	}
	o.Status = to
	o.Timeline = timeline
	o.UpdatedAt = at
	s.d.orders[id] = o
	o = cloneOrder(o)
	return &o, nil
}

// SetOrderStatus overwrites an order's status directly, for seeding states
// that no lifecycle operation produces.
func (s *Store) SetOrderStatus(id bson.ObjectID, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.d.orders[id]; ok {
		o.Status = status
		s.d.orders[id] = o
	}
}

func (s *Store) SalesReport(context.Context) (*models.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byStatus := map[models.OrderStatus]*models.StatusSummary{}
	for _, o := range s.d.orders {
		sum, ok := byStatus[o.Status]
		if !ok {
			sum = &models.StatusSummary{Status: o.Status}
			byStatus[o.Status] = sum
		}
		sum.Count++
		sum.Revenue += o.TotalAmount
	}
	statuses := make([]models.StatusSummary, 0, len(byStatus))
	for _, sum := range byStatus {
		sum.Revenue = models.RoundMoney(sum.Revenue)
		sum.AvgOrderValue = models.RoundMoney(sum.Revenue / float64(sum.Count))
		statuses = append(statuses, *sum)
	}
	slices.SortFunc(statuses, func(a, b models.StatusSummary) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(string(a.Status), string(b.Status))
	})
	return models.NewSalesReport(statuses), nil
}
