package consumers

import (
	"context"

	"github.com/sunilkumartc/vet-cares-sub000/internal/stock/service"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/actor"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

// BillingConsumer consumes billing events and turns paid invoices into
// stock allocations, one per product
type BillingConsumer struct {
	consumer *messaging.Consumer
	service  *service.StockService
	logger   *logger.Logger
}

// NewBillingConsumer creates and wires the billing event consumer
func NewBillingConsumer(rmq *messaging.RabbitMQ, svc *service.StockService, log *logger.Logger) (*BillingConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.billing-events", log)
	if err != nil {
		return nil, err
	}

	bc := &BillingConsumer{
		consumer: consumer,
		service:  svc,
		logger:   log,
	}

	if err := consumer.Subscribe(messaging.ExchangeBillingEvents, "billing.invoice.*"); err != nil {
		return nil, err
	}
	consumer.RegisterHandler(messaging.EventInvoicePaid, bc.handleInvoicePaid)

	return bc, nil
}

// Start starts consuming billing events
func (c *BillingConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleInvoicePaid allocates stock for the line items of a paid invoice.
// Lines for the same product are combined into a single allocation, so the
// idempotency key (product, invoice) covers the invoice's full quantity for
// that product and a redelivered event skips products already allocated.
// Insufficient stock is logged and acked rather than retried; retrying
// cannot make stock appear and would only park the event in the DLQ.
func (c *BillingConsumer) handleInvoicePaid(ctx context.Context, event *messaging.Event) error {
	var data messaging.InvoicePaidEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("malformed invoice paid event")
		return err
	}

	if data.StaffID != "" {
		ctx = actor.WithActor(ctx, &actor.Actor{ID: data.StaffID, Name: data.StaffName})
	}

	log := c.logger.With().Str("invoice_id", data.InvoiceID).Logger()

	wanted := make(map[string]int, len(data.LineItems))
	order := make([]string, 0, len(data.LineItems))
	for _, line := range data.LineItems {
		if line.Quantity <= 0 {
			continue
		}
		if _, seen := wanted[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}

	for _, productID := range order {
		quantity := wanted[productID]

		done, err := c.service.HasSaleForReference(ctx, productID, data.InvoiceID)
		if err != nil {
			return err
		}
		if done {
			log.Debug().Str("product_id", productID).Msg("product already allocated for invoice, skipping")
			continue
		}

		_, err = c.service.Allocate(ctx, productID, quantity, data.InvoiceID)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrInsufficientStock):
			log.Warn().
				Str("product_id", productID).
				Int("quantity", quantity).
				Msg("invoice line could not be covered by stock")
		case errors.Is(err, errors.ErrContention):
			// Requeue and let the broker retry discipline spread the load.
			return err
		default:
			return err
		}
	}

	return nil
}
