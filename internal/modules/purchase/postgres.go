package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const purchaseColumns = `id, shop_address, product_id, buyer, referrer, count, value_wei,
	tx_hash, state, last_error, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, p *Purchase) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases
		  (id, shop_address, product_id, buyer, referrer, count, value_wei, tx_hash, state, last_error, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, strings.ToLower(p.Shop), p.ProductID, strings.ToLower(p.Buyer), strings.ToLower(p.Referrer),
		p.Count, p.ValueWei, p.TxHash, p.State, p.LastError, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// Transition only updates the row while it is still in from, so two writers
// cannot both advance the same purchase.
func (r *postgresRepo) Transition(ctx context.Context, id uuid.UUID, from, to State, txHash, lastError string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchases
		SET state=$1,
		    tx_hash=CASE WHEN $2 = '' THEN tx_hash ELSE $2 END,
		    last_error=$3,
		    updated_at=$4
		WHERE id=$5 AND state=$6`,
		to, txHash, lastError, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update purchase state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrStaleTransition, from, to)
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return scanPurchase(r.db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id).Scan)
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyer string, limit int) ([]*Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE buyer=$1 ORDER BY created_at DESC LIMIT $2`,
		strings.ToLower(buyer), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []*Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows.Scan)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func scanPurchase(scan func(dest ...interface{}) error) (*Purchase, error) {
	p := &Purchase{}
	err := scan(&p.ID, &p.Shop, &p.ProductID, &p.Buyer, &p.Referrer, &p.Count, &p.ValueWei,
		&p.TxHash, &p.State, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
