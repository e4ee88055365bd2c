// Package product provides the repository interface and PostgreSQL
// implementation for products and stock movements.
package product

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Movement reasons recorded in the stock ledger.
const (
	ReasonSale    = "sale"
	ReasonRestock = "restock"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// AdjustStock applies delta atomically (guarded against going
	// negative) and records a stock_movements ledger row tagged with
	// reason, in a single transaction.
	AdjustStock(ctx context.Context, id string, delta int, reason string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Product
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, price::text, stock, created_at, updated_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) AdjustStock(ctx context.Context, id string, delta int, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// the guarded UPDATE is the atomicity: no read-modify-write window
	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
	`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, delta, reason, created_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, uuid.NewString(), id, delta, reason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
