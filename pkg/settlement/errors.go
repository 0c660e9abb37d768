package settlement

import (
	"errors"
	"fmt"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/payments"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrUnknownBuyer     = fmt.Errorf("unknown buyer: %w", ErrNotFound)
	ErrIntentNotFound   = fmt.Errorf("intent %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrNothingToPay     = errors.New("nothing to pay for")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrNothingToSettle  = errors.New("nothing to settle")
	ErrIntentClosed     = errors.New("payment intent already failed")
	ErrConflict         = errors.New("order was modified concurrently")

	ErrGatewayUnavailable = payments.ErrGatewayUnavailable
	ErrTerminalState      = models.ErrTerminalState
	ErrInvalidTransition  = models.ErrInvalidTransition
	ErrCannotCancel       = models.ErrCannotCancel
)

func validation(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}
