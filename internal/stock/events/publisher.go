package events

import (
	"context"

	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/messaging"
)

// StockEventPublisher publishes stock engine events. All publishing happens
// after the owning transaction commits; a publish failure is logged, never
// propagated back into the stock operation.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishAllocated publishes a stock allocated event
func (p *StockEventPublisher) PublishAllocated(ctx context.Context, data messaging.StockAllocatedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockAllocated, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", data.ProductID).Msg("failed to publish stock allocated event")
	}
}

// PublishReceived publishes a stock received event
func (p *StockEventPublisher) PublishReceived(ctx context.Context, data messaging.StockReceivedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish stock received event")
	}
}

// PublishAdjusted publishes a stock adjusted event
func (p *StockEventPublisher) PublishAdjusted(ctx context.Context, data messaging.StockAdjustedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish stock adjusted event")
	}
}

// PublishStatusChanged publishes a batch status changed event
func (p *StockEventPublisher) PublishStatusChanged(ctx context.Context, data messaging.BatchStatusChangedEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchStatusChange, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch status changed event")
	}
}

// PublishExpiring publishes a batch expiring event
func (p *StockEventPublisher) PublishExpiring(ctx context.Context, data messaging.BatchExpiringEvent) {
	if p == nil {
		return
	}
	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", data.BatchID).Msg("failed to publish batch expiring event")
	}
}
