package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transaction statuses.
const (
	TxCompleted = "completed"
	TxPending   = "pending"
	TxFailed    = "failed"
)

// Transaction records one verification attempt against an order.
type Transaction struct {
	ID              string         `json:"id"`
	OrderID         string         `json:"order_id"`
	Method          string         `json:"method"`
	Amount          string         `json:"amount,omitempty"`
	Reference       string         `json:"reference,omitempty"`
	Status          string         `json:"status"`
	GatewayResponse map[string]any `json:"gateway_response,omitempty"`
	ProcessedAt     time.Time      `json:"processed_at"`
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	ListByOrder(ctx context.Context, orderID string) ([]Transaction, error)
}

type PGTransactionRepo struct{ db *pgxpool.Pool }

func NewPGTransactionRepo(db *pgxpool.Pool) *PGTransactionRepo {
	return &PGTransactionRepo{db: db}
}

func (r *PGTransactionRepo) Create(ctx context.Context, tx *Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	var amount any
	if tx.Amount != "" {
		amount = tx.Amount
	}
	_, err := r.db.Exec(ctx, `
    INSERT INTO payment_transactions (id, order_id, method, amount, reference, status, gateway_response, processed_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
  `, tx.ID, tx.OrderID, tx.Method, amount, tx.Reference, tx.Status, tx.GatewayResponse)
	return err
}

func (r *PGTransactionRepo) ListByOrder(ctx context.Context, orderID string) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, method, COALESCE(amount::text,''), reference, status, gateway_response, processed_at
    FROM payment_transactions
    WHERE order_id = $1
    ORDER BY processed_at DESC
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.OrderID, &tx.Method, &tx.Amount, &tx.Reference,
			&tx.Status, &tx.GatewayResponse, &tx.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
