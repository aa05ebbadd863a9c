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

// Product is the per-product stock aggregate. TotalStock is derived from
// batches and must equal the sum of their on-hand quantities at all times;
// it is only ever written together with a batch mutation in the same
// transaction, guarded by the version counter.
type Product struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Unit       string          `db:"unit" json:"unit"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalStock int             `db:"total_stock" json:"total_stock"`
	Version    int64           `db:"version" json:"-"`
	IsActive   bool            `db:"is_active" json:"is_active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ProductRepository handles product aggregate persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, name, unit, unit_price, total_stock, version, is_active)
		VALUES ($1, $2, $3, $4, 0, 1, true)
		RETURNING total_stock, version, is_active, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query, p.ID, p.Name, p.Unit, p.UnitPrice).
		Scan(&p.TotalStock, &p.Version, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// GetByIDTx gets a product inside a transaction
func (r *ProductRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*Product, error) {
	var p Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := tx.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &p, nil
}

// List lists products with pagination
func (r *ProductRepository) List(ctx context.Context, page, perPage int) ([]*Product, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products WHERE is_active = true`); err != nil {
		return nil, 0, err
	}

	var products []*Product
	query := `
		SELECT * FROM products
		WHERE is_active = true
		ORDER BY name
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &products, query, perPage, (page-1)*perPage); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListAllActive lists every active product, unpaginated. Used by the
// dashboard aggregation.
func (r *ProductRepository) ListAllActive(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT * FROM products WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Deactivate soft-deactivates a product. Products are never deleted while
// batches reference them.
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE products SET is_active = false, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}
	return nil
}

// ApplyStockDeltaTx moves the aggregate by delta inside a transaction,
// guarded by the optimistic version counter. A zero row count means another
// writer got there first and the whole transaction must be rolled back.
func (r *ProductRepository) ApplyStockDeltaTx(ctx context.Context, tx *sqlx.Tx, id string, delta int, version int64) error {
	query := `
		UPDATE products
		SET total_stock = total_stock + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
	`
	result, err := tx.ExecContext(ctx, query, id, delta, version)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Contention("product " + id)
	}
	return nil
}

// RecomputeTotalStockTx rebuilds the aggregate from batch rows. Used by the
// reconciliation routine to recover from drift.
func (r *ProductRepository) RecomputeTotalStockTx(ctx context.Context, tx *sqlx.Tx, id string) (int, error) {
	var total int
	query := `
		UPDATE products
		SET total_stock = COALESCE(
			(SELECT SUM(quantity_on_hand) FROM batches WHERE product_id = products.id), 0
		), version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING total_stock
	`
	if err := tx.QueryRowxContext(ctx, query, id).Scan(&total); err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.NotFound("product")
		}
		return 0, err
	}
	return total, nil
}
