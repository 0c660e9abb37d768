package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var ErrLineNotFound = errors.New("item not found in cart")

type CartItem struct {
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	SellerID  bson.ObjectID `json:"seller_id" bson:"seller_id"`
	Name      string        `json:"name" bson:"name"`
	Price     float64       `json:"price" bson:"price"` // unit price when the item was added
	Quantity  int           `json:"quantity" bson:"quantity"`
	Image     string        `json:"image" bson:"image"`
	Subtotal  float64       `json:"subtotal" bson:"subtotal"`
	AddedAt   time.Time     `json:"added_at" bson:"added_at"`
}

// Cart is the buyer's single current cart. Totals are derived; never set them by hand.
type Cart struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	BuyerID     bson.ObjectID `json:"user_id" bson:"buyer_id"`
	Items       []CartItem    `json:"items" bson:"items"`
	Subtotal    float64       `json:"subtotal" bson:"subtotal"`
	Tax         float64       `json:"tax" bson:"tax"`
	PlatformFee float64       `json:"platform_fee" bson:"platform_fee"`
	Total       float64       `json:"total" bson:"total"`
	ItemCount   int           `json:"item_count" bson:"item_count"`
	Version     int64         `json:"version" bson:"version"` // bumped by every save
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

type AddToCartRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type RemoveCartItemRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
}

func NewCart(buyerID bson.ObjectID) *Cart {
	now := time.Now()
	return &Cart{
		BuyerID:   buyerID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(productID bson.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem merges quantity into an existing line or appends a new one at the product's current price.
func (c *Cart) AddItem(product *Product, quantity int, pricing Pricing) {
	if i := c.indexOf(product.ID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].Subtotal = lineSubtotal(c.Items[i].Price, c.Items[i].Quantity)
	} else {
		c.Items = append(c.Items, CartItem{
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  quantity,
			Image:     product.Image,
			Subtotal:  lineSubtotal(product.Price, quantity),
			AddedAt:   time.Now(),
		})
	}
	c.Recalculate(pricing)
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID bson.ObjectID, quantity int, pricing Pricing) error {
	i := c.indexOf(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
		c.Items[i].Subtotal = lineSubtotal(c.Items[i].Price, quantity)
	}
	c.Recalculate(pricing)
	return nil
}

func (c *Cart) RemoveItem(productID bson.ObjectID, pricing Pricing) error {
	return c.SetQuantity(productID, 0, pricing)
}

// Empty drops every line. The cart document itself is kept.
func (c *Cart) Empty() {
	c.Items = []CartItem{}
	c.Recalculate(Pricing{})
}

// Recalculate derives every total from the lines.
func (c *Cart) Recalculate(pricing Pricing) {
	subtotals := make([]float64, len(c.Items))
	c.ItemCount = 0
	for i := range c.Items {
		c.Items[i].Subtotal = lineSubtotal(c.Items[i].Price, c.Items[i].Quantity)
		subtotals[i] = c.Items[i].Subtotal
		c.ItemCount += c.Items[i].Quantity
	}
	t := pricing.compute(subtotals)
	c.Subtotal = t.subtotal
	c.Tax = t.tax
	c.PlatformFee = t.fee
	c.Total = t.total
	c.UpdatedAt = time.Now()
}

// Lines copies the cart's lines into order lines.
func (c *Cart) Lines() []OrderItem {
	lines := make([]OrderItem, len(c.Items))
	for i, item := range c.Items {
		lines[i] = OrderItem{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
			Subtotal:  item.Subtotal,
		}
	}
	return lines
}
