package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Capability is one kind of action a caller may perform.
type Capability string

const (
	// CapShop covers a buyer's own cart, checkout and orders.
	CapShop Capability = "shop"
	// CapSell covers listing products.
	CapSell Capability = "sell"
	// CapFulfil covers moving orders through fulfilment.
	CapFulfil Capability = "fulfil"
	// CapAdmin covers platform-wide reads and acting on any buyer's behalf.
	CapAdmin Capability = "admin"
)

var roleCapabilities = map[models.Role][]Capability{
	models.RoleBuyer:  {CapShop},
	models.RoleSeller: {CapShop, CapSell, CapFulfil},
	models.RoleAdmin:  {CapShop, CapSell, CapFulfil, CapAdmin},
}

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	ID   bson.ObjectID
	Role models.Role
}

func (p Principal) Can(capability Capability) bool {
	for _, c := range roleCapabilities[p.Role] {
		if c == capability {
			return true
		}
	}
	return false
}

// CanActFor reports whether the caller may touch resources owned by buyerID.
func (p Principal) CanActFor(buyerID bson.ObjectID) bool {
	return p.ID == buyerID || p.Can(CapAdmin)
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (i *Issuer) Issue(customer *models.Customer) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.expiry)
	claims := Claims{
		Role: customer.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

func (i *Issuer) Parse(tokenString string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := bson.ObjectIDFromHex(claims.Subject)
	if err != nil || !claims.Role.IsValid() {
		return Principal{}, ErrInvalidToken
	}
	return Principal{ID: id, Role: claims.Role}, nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
