package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Product is a catalogue listing owned by a seller
type Product struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	SellerID    bson.ObjectID `json:"seller_id" bson:"seller_id"`
	Name        string        `json:"name" bson:"name"`
	Description string        `json:"description" bson:"description"`
	Category    string        `json:"category" bson:"category"`
	Price       float64       `json:"price" bson:"price"`
	Currency    string        `json:"currency" bson:"currency"`
	Image       string        `json:"image" bson:"image"`
	Stock       int           `json:"stock" bson:"stock"`
	Status      string        `json:"status" bson:"status"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,min=2,max=200"`
	Description string  `json:"description" binding:"max=2000"`
	Category    string  `json:"category" binding:"required,min=2,max=100"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Image       string  `json:"image" binding:"omitempty,url"`
	Stock       int     `json:"stock" binding:"gte=0"`
}

func (req *CreateProductRequest) ToProduct(sellerID bson.ObjectID, currency string) *Product {
	now := time.Now()
	return &Product{
		ID:          bson.NewObjectID(),
		SellerID:    sellerID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       RoundMoney(req.Price),
		Currency:    currency,
		Image:       req.Image,
		Stock:       req.Stock,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Product) IsAvailable() bool {
	return p.Status == "active"
}
