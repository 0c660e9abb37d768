package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
)

const principalKey = "principal"

// Authenticate requires a valid bearer token and stores the caller on the context.
func Authenticate(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.ErrorResponse("Authentication required", global.FieldError(
				"Authorization", "a bearer token is required", "required")))
			return
		}

		p, err := issuer.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.ErrorResponse("Invalid or expired token", nil))
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireCapability lets the request through when the caller holds any of caps.
func RequireCapability(caps ...auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.ErrorResponse("Authentication required", nil))
			return
		}
		for _, capability := range caps {
			if p.Can(capability) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, global.ErrorResponse("Insufficient permissions", nil))
	}
}

func principal(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := value.(auth.Principal)
	return p, ok
}

// actingFor checks that the caller may act on buyerID and writes a 403 when not.
func actingFor(c *gin.Context, buyerID bson.ObjectID) bool {
	p, ok := principal(c)
	if !ok || !p.CanActFor(buyerID) {
		c.JSON(http.StatusForbidden, global.ErrorResponse("Not allowed to act for this user", global.FieldError(
			"user_id", "user_id must match the authenticated user", "forbidden")))
		return false
	}
	return true
}
