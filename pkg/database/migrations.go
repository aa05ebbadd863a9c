package database

import "context"

// StockMigrations returns the stock service schema. cmd/migrate applies the
// same statements against a real database; tests apply them to the
// container. Keeping them in one place keeps the two from drifting.
func StockMigrations() []string {
	return []string{
		// Products carry the tracked aggregate and an optimistic version
		// counter. The catalog proper lives in another service.
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(32) NOT NULL DEFAULT 'unit',
			unit_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			total_stock INT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT total_stock_non_negative CHECK (total_stock >= 0)
		)`,

		// Batches. quantity_received is immutable after insert; on-hand is
		// bounded to [0, received] at the database level as a backstop.
		`CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_id UUID NOT NULL REFERENCES products(id),
			lot_number VARCHAR(64),
			expiry_date DATE NOT NULL,
			received_date DATE NOT NULL,
			quantity_received INT NOT NULL,
			quantity_on_hand INT NOT NULL,
			unit_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT quantity_received_positive CHECK (quantity_received > 0),
			CONSTRAINT quantity_on_hand_bounds CHECK (quantity_on_hand >= 0 AND quantity_on_hand <= quantity_received),
			CONSTRAINT status_valid CHECK (status IN ('active', 'expired', 'recalled', 'depleted'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_batches_fefo
			ON batches (product_id, expiry_date, received_date, id)
			WHERE status = 'active' AND quantity_on_hand > 0`,

		// The movement ledger. Append-only: the application never issues
		// UPDATE or DELETE against this table, and seq gives a total order
		// within a batch even when created_at collides.
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL,
			product_id UUID NOT NULL REFERENCES products(id),
			batch_id UUID NOT NULL REFERENCES batches(id),
			movement_type VARCHAR(30) NOT NULL,
			quantity_delta INT NOT NULL,
			previous_stock INT NOT NULL,
			new_stock INT NOT NULL,
			reference_id VARCHAR(128),
			reason TEXT,
			actor_id UUID NOT NULL,
			actor_name VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT movement_type_valid CHECK (movement_type IN ('receipt', 'sale', 'adjustment', 'expiry_writeoff')),
			CONSTRAINT snapshots_connected CHECK (new_stock = previous_stock + quantity_delta)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_movements_product ON stock_movements (product_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_batch ON stock_movements (batch_id, created_at, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_reference ON stock_movements (reference_id) WHERE reference_id IS NOT NULL`,
	}
}

// Migrate applies the stock schema. All statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range StockMigrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
