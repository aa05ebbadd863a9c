package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/database"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/errors"
)

// Movement is one immutable ledger entry: a single quantity change to a
// single batch with before/after snapshots. Rows are never updated or
// deleted; the ledger is the system of record for all quantity history.
type Movement struct {
	ID            string       `db:"id" json:"id"`
	Seq           int64        `db:"seq" json:"-"`
	ProductID     string       `db:"product_id" json:"product_id"`
	BatchID       string       `db:"batch_id" json:"batch_id"`
	MovementType  MovementType `db:"movement_type" json:"movement_type"`
	QuantityDelta int          `db:"quantity_delta" json:"quantity_delta"`
	PreviousStock int          `db:"previous_stock" json:"previous_stock"`
	NewStock      int          `db:"new_stock" json:"new_stock"`
	ReferenceID   *string      `db:"reference_id" json:"reference_id,omitempty"`
	Reason        *string      `db:"reason" json:"reason,omitempty"`
	ActorID       string       `db:"actor_id" json:"actor_id"`
	ActorName     string       `db:"actor_name" json:"actor_name"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// MovementFilter narrows ledger queries
type MovementFilter struct {
	ProductID    string
	BatchID      string
	MovementType MovementType
	From         *time.Time
	To           *time.Time
}

// MovementRepository handles the append-only movement ledger
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// AppendTx appends a ledger entry inside a transaction. A failure here is
// fatal to the enclosing operation (the batch and product writes it
// describes must roll back with it).
func (r *MovementRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, product_id, batch_id, movement_type, quantity_delta,
			previous_stock, new_stock, reference_id, reason, actor_id, actor_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		m.ID, m.ProductID, m.BatchID, m.MovementType, m.QuantityDelta,
		m.PreviousStock, m.NewStock, m.ReferenceID, m.Reason, m.ActorID, m.ActorName,
	).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		return errors.LedgerWriteFailure(err)
	}
	return nil
}

// List queries the ledger with optional filters, newest first
func (r *MovementRepository) List(ctx context.Context, filter MovementFilter, page, perPage int) ([]*Movement, int64, error) {
	where, args := buildMovementWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM stock_movements` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(
		`SELECT * FROM stock_movements%s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	var movements []*Movement
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// ListByBatch returns the full movement chain for one batch in commit
// order. Replaying previous_stock → new_stock over this slice must
// reproduce the batch's current quantity on hand.
func (r *MovementRepository) ListByBatch(ctx context.Context, batchID string) ([]*Movement, error) {
	var movements []*Movement
	query := `
		SELECT * FROM stock_movements
		WHERE batch_id = $1
		ORDER BY created_at, seq
	`
	if err := r.db.SelectContext(ctx, &movements, query, batchID); err != nil {
		return nil, err
	}
	return movements, nil
}

// HasSaleForReference reports whether a sale movement already exists for
// this product and reference. Used to make redelivered billing events
// idempotent.
func (r *MovementRepository) HasSaleForReference(ctx context.Context, productID, referenceID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM stock_movements
			WHERE product_id = $1 AND reference_id = $2 AND movement_type = 'sale'
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, productID, referenceID); err != nil {
		return false, err
	}
	return exists, nil
}

func buildMovementWhere(filter MovementFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.ProductID != "" {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.BatchID != "" {
		add("batch_id = $%d", filter.BatchID)
	}
	if filter.MovementType != "" {
		add("movement_type = $%d", string(filter.MovementType))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
