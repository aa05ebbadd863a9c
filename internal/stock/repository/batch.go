package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/database"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
)

// Batch is a discrete received lot of a product. QuantityReceived is
// immutable after creation; QuantityOnHand only moves through the stock
// service's transactional paths.
type Batch struct {
	ID               string          `db:"id" json:"id"`
	ProductID        string          `db:"product_id" json:"product_id"`
	LotNumber        *string         `db:"lot_number" json:"lot_number,omitempty"`
	ExpiryDate       time.Time       `db:"expiry_date" json:"expiry_date"`
	ReceivedDate     time.Time       `db:"received_date" json:"received_date"`
	QuantityReceived int             `db:"quantity_received" json:"quantity_received"`
	QuantityOnHand   int             `db:"quantity_on_hand" json:"quantity_on_hand"`
	UnitCost         decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Status           BatchStatus     `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateTx creates a new batch inside a transaction
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, b *Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (
			id, product_id, lot_number, expiry_date, received_date,
			quantity_received, quantity_on_hand, unit_cost, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		b.ID, b.ProductID, b.LotNumber, b.ExpiryDate, b.ReceivedDate,
		b.QuantityReceived, b.QuantityOnHand, b.UnitCost, b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var b Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// GetByIDTx gets a batch inside a transaction
func (r *BatchRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*Batch, error) {
	var b Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := tx.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// ListByProduct lists all batches for a product, soonest expiry first
func (r *BatchRepository) ListByProduct(ctx context.Context, productID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE product_id = $1
		ORDER BY expiry_date, received_date, id
	`
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListEligibleTx lists the allocation candidate set inside a transaction:
// active batches with stock on hand, in FEFO order. Ties on expiry break by
// received date, then batch id, so plans are deterministic.
func (r *BatchRepository) ListEligibleTx(ctx context.Context, tx *sqlx.Tx, productID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE product_id = $1 AND status = 'active' AND quantity_on_hand > 0
		ORDER BY expiry_date, received_date, id
	`
	if err := tx.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ConsumeTx decrements a batch by take and flips it to depleted when it
// reaches zero. The guard clause re-checks status and quantity so a stale
// plan can never drive a batch negative.
func (r *BatchRepository) ConsumeTx(ctx context.Context, tx *sqlx.Tx, id string, take int) error {
	query := `
		UPDATE batches
		SET quantity_on_hand = quantity_on_hand - $2,
		    status = CASE WHEN quantity_on_hand - $2 = 0 THEN 'depleted' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND quantity_on_hand >= $2
	`
	result, err := tx.ExecContext(ctx, query, id, take)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Contention("batch " + id)
	}
	return nil
}

// SetQuantityTx sets a batch's on-hand quantity and status inside a
// transaction. Used by the adjustment path after bounds validation.
func (r *BatchRepository) SetQuantityTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int, status BatchStatus) error {
	query := `
		UPDATE batches
		SET quantity_on_hand = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, id, quantity, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// SetStatusTx sets a batch's status without touching quantities
func (r *BatchRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status BatchStatus) error {
	query := `UPDATE batches SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// ListActive lists all active batches across products, soonest expiry
// first. Used by the expiry scanner and dashboard.
func (r *BatchRepository) ListActive(ctx context.Context) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE status = 'active' AND quantity_on_hand > 0
		ORDER BY expiry_date, received_date, id
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// SumOnHand returns the sum of on-hand quantities over all batches of a
// product, regardless of status. This is the ground truth the product
// aggregate must agree with.
func (r *BatchRepository) SumOnHand(ctx context.Context, productID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity_on_hand) FROM batches WHERE product_id = $1`
	if err := r.db.GetContext(ctx, &total, query, productID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}
