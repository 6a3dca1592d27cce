package payment

import (
	"context"
	"errors"

	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/models"
)

var ErrPaymentInitiationNotImplemented = errors.New("payment initiation is not implemented")

// Initiator starts payment for a created order, e.g. by authorizing a
// charge with a provider and writing a ledger entry.
type Initiator interface {
	Initiate(ctx context.Context, event events.OrderCreated) (*models.Payment, error)
}

// UnimplementedInitiator is the extension point left for a payment provider
// integration. It always fails so no order is reported as paid by accident.
type UnimplementedInitiator struct{}

func (UnimplementedInitiator) Initiate(context.Context, events.OrderCreated) (*models.Payment, error) {
	return nil, ErrPaymentInitiationNotImplemented
}
