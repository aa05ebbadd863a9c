package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockAllocated    = "stock.allocated"
	EventStockReceived     = "stock.received"
	EventStockAdjusted     = "stock.adjusted"
	EventBatchStatusChange = "stock.batch.status_changed"
	EventBatchExpiring     = "stock.batch.expiring"

	// Billing events (consumed; published by the billing service)
	EventInvoicePaid   = "billing.invoice.paid"
	EventSaleCompleted = "billing.sale.completed"
)

// Exchange names
const (
	ExchangeStockEvents   = "stock.events"
	ExchangeBillingEvents = "billing.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock events

// AllocationLine is one batch's share of an allocation
type AllocationLine struct {
	BatchID       string `json:"batch_id"`
	QuantityTaken int    `json:"quantity_taken"`
}

// StockAllocatedEvent is published when an allocation commits
type StockAllocatedEvent struct {
	ProductID   string           `json:"product_id"`
	Quantity    int              `json:"quantity"`
	TotalCost   string           `json:"total_cost"`
	ReferenceID string           `json:"reference_id,omitempty"`
	Lines       []AllocationLine `json:"lines"`
	ActorID     string           `json:"actor_id"`
}

// StockReceivedEvent is published when a new batch is received
type StockReceivedEvent struct {
	ProductID string `json:"product_id"`
	BatchID   string `json:"batch_id"`
	LotNumber string `json:"lot_number,omitempty"`
	Quantity  int    `json:"quantity"`
	ActorID   string `json:"actor_id"`
}

// StockAdjustedEvent is published when a batch quantity is corrected
type StockAdjustedEvent struct {
	ProductID     string `json:"product_id"`
	BatchID       string `json:"batch_id"`
	MovementType  string `json:"movement_type"`
	QuantityDelta int    `json:"quantity_delta"`
	NewQuantity   int    `json:"new_quantity"`
	Reason        string `json:"reason,omitempty"`
	ActorID       string `json:"actor_id"`
}

// BatchStatusChangedEvent is published on explicit status transitions
type BatchStatusChangedEvent struct {
	ProductID string `json:"product_id"`
	BatchID   string `json:"batch_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
	ActorID   string `json:"actor_id"`
}

// BatchExpiringEvent is published by the expiry scanner for batches in an
// alert bucket
type BatchExpiringEvent struct {
	ProductID       string `json:"product_id"`
	BatchID         string `json:"batch_id"`
	LotNumber       string `json:"lot_number,omitempty"`
	ExpiryDate      string `json:"expiry_date"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	Bucket          string `json:"bucket"`
	QuantityOnHand  int    `json:"quantity_on_hand"`
}

// Billing events (consumed)

// InvoiceLineItem is one product line on a paid invoice
type InvoiceLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InvoicePaidEvent is consumed when a sale/invoice transitions to paid.
// The stock engine allocates the invoice's total quantity per product.
type InvoicePaidEvent struct {
	InvoiceID string            `json:"invoice_id"`
	StaffID   string            `json:"staff_id"`
	StaffName string            `json:"staff_name"`
	LineItems []InvoiceLineItem `json:"line_items"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
