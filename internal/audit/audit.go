// Package audit writes the append-only security audit trail for
// payment verification outcomes and anomalies.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Entry struct {
	Action    string         `json:"action"`
	Risk      RiskLevel      `json:"risk_level"`
	OrderID   string         `json:"order_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Try records best-effort: a failed write is logged and swallowed.
// Audit logging must never block or fail the flow it observes.
func Try(ctx context.Context, r Recorder, logger *slog.Logger, e Entry) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, e); err != nil {
		logger.Warn("audit write failed", "action", e.Action, "risk", e.Risk, "err", err)
	}
}

type PGRecorder struct{ db *pgxpool.Pool }

func NewPGRecorder(db *pgxpool.Pool) *PGRecorder { return &PGRecorder{db: db} }

func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var orderID any
	if e.OrderID != "" {
		orderID = e.OrderID
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO security_audit_log (id, action, risk_level, order_id, request_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
	`, uuid.NewString(), e.Action, e.Risk, orderID, e.RequestID, e.Detail)
	return err
}
