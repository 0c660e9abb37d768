package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

// Address represents a shipping address in a customer's address book
type Address struct {
	FullName   string `json:"full_name" bson:"full_name" binding:"required"`
	Street     string `json:"street" bson:"street" binding:"required"`
	City       string `json:"city" bson:"city" binding:"required"`
	State      string `json:"state" bson:"state" binding:"required"`
	PostalCode string `json:"postal_code" bson:"postal_code" binding:"required"`
	Country    string `json:"country" bson:"country" binding:"required"`
	Phone      string `json:"phone" bson:"phone,omitempty"`
	IsDefault  bool   `json:"is_default" bson:"is_default"`
}

// String renders the address on one line; orders store this text, not a reference.
func (a Address) String() string {
	parts := make([]string, 0, 7)
	for _, p := range []string{a.FullName, a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	line := strings.Join(parts, ", ")
	if a.Phone != "" {
		line += " (" + a.Phone + ")"
	}
	return line
}

// Customer is any account on the marketplace: buyer, seller or admin
type Customer struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string        `bson:"email" json:"email"`
	Password      string        `bson:"password" json:"-"` // Never expose in JSON
	FirstName     string        `bson:"first_name" json:"first_name"`
	LastName      string        `bson:"last_name" json:"last_name"`
	Phone         string        `bson:"phone" json:"phone"`
	Role          Role          `bson:"role" json:"role"`
	Addresses     []Address     `bson:"addresses" json:"addresses"`
	AccountStatus string        `bson:"account_status" json:"account_status"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

type CreateCustomerRequest struct {
	Email     string   `json:"email" binding:"required,email"`
	Password  string   `json:"password" binding:"required,min=8"`
	FirstName string   `json:"first_name" binding:"required,min=2,max=50"`
	LastName  string   `json:"last_name" binding:"required,min=2,max=50"`
	Phone     string   `json:"phone" binding:"omitempty,min=10,max=20"`
	Role      Role     `json:"role" binding:"omitempty,oneof=buyer seller"`
	Address   *Address `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SetTimestamps sets created_at on first call and always updates updated_at
func (c *Customer) SetTimestamps() {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c *Customer) GetFullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// GetDefaultAddress returns the address marked default, or the first address if none is.
func (c *Customer) GetDefaultAddress() *Address {
	for i := range c.Addresses {
		if c.Addresses[i].IsDefault {
			return &c.Addresses[i]
		}
	}
	if len(c.Addresses) > 0 {
		return &c.Addresses[0]
	}
	return nil
}

// AddAddress appends to the address book. The first address, or one flagged default, becomes the default.
func (c *Customer) AddAddress(address Address) {
	if len(c.Addresses) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for i := range c.Addresses {
			c.Addresses[i].IsDefault = false
		}
	}
	c.Addresses = append(c.Addresses, address)
	c.UpdatedAt = time.Now()
}

func (c *Customer) IsActive() bool {
	return c.AccountStatus == "active"
}
