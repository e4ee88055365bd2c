// Package payment holds the authoritative, idempotent payment
// verification flow and its per-attempt transaction log.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karoocart/checkout-service/internal/audit"
	"github.com/karoocart/checkout-service/internal/mailer"
	"github.com/karoocart/checkout-service/internal/messaging"
	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payfast"
	"github.com/karoocart/checkout-service/internal/product"
	"github.com/karoocart/checkout-service/internal/ws"
)

// Supported payment methods.
const (
	MethodPayFast = "payfast"
	MethodCard    = "card"
	MethodEFT     = "eft"
	MethodCOD     = "cod"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrMethodMismatch    = errors.New("payment method mismatch")
	ErrAmountMismatch    = errors.New("payment amount mismatch")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrMissingReference  = errors.New("missing payment reference")
	ErrNoCardGateway     = errors.New("card gateway not configured")
)

// VerifyRequest is a claimed payment completion for one order.
type VerifyRequest struct {
	OrderID   string
	Method    string
	Reference string
	Amount    string // optional; empty means not claimed
	Signature string
	// Fields carries the raw gateway notification when the claim came
	// in over the notify callback; signature checks run over it.
	Fields    map[string]string
	RequestID string
}

// Result is the verification outcome. Verified is authoritative;
// Detail carries method-specific evidence.
type Result struct {
	Verified bool           `json:"verified"`
	Message  string         `json:"message,omitempty"`
	Order    *order.Order   `json:"order,omitempty"`
	Detail   map[string]any `json:"verification_result,omitempty"`
}

// Strategy evaluates one payment method's evidence for an order.
type Strategy func(ctx context.Context, o *order.Order, req VerifyRequest) (bool, map[string]any, error)

// StatusBroadcaster pushes order status changes to listening clients.
type StatusBroadcaster interface {
	Broadcast(upd ws.StatusUpdate)
}

type Verifier struct {
	orders   order.Repository
	txs      TransactionRepository
	products product.Repository

	gateway *payfast.Client
	card    CardGateway

	auditLog  audit.Recorder
	mail      mailer.Sender
	events    messaging.Publisher
	broadcast StatusBroadcaster
	logger    *slog.Logger

	tolerance  decimal.Decimal
	strategies map[string]Strategy
}

type VerifierConfig struct {
	Orders       order.Repository
	Transactions TransactionRepository
	Products     product.Repository
	Gateway      *payfast.Client
	Card         CardGateway
	Audit        audit.Recorder
	Mail         mailer.Sender
	Events       messaging.Publisher
	Broadcast    StatusBroadcaster
	Logger       *slog.Logger
	// Tolerance for the amount check in currency units; zero selects
	// the 0.01 default.
	Tolerance decimal.Decimal
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tolerance.IsZero() {
		cfg.Tolerance = decimal.New(1, -2) // 0.01
	}
	v := &Verifier{
		orders:    cfg.Orders,
		txs:       cfg.Transactions,
		products:  cfg.Products,
		gateway:   cfg.Gateway,
		card:      cfg.Card,
		auditLog:  cfg.Audit,
		mail:      cfg.Mail,
		events:    cfg.Events,
		broadcast: cfg.Broadcast,
		logger:    cfg.Logger,
		tolerance: cfg.Tolerance,
	}
	v.strategies = map[string]Strategy{
		MethodPayFast: v.verifyPayFast,
		MethodCard:    v.verifyCard,
		MethodEFT:     manualReview,
		MethodCOD:     manualReview,
	}
	return v
}

// Verify runs the full confirmation flow for one claimed payment.
// Every path writes exactly one audit entry. Side effects after a won
// confirmation are best-effort and never turn a verified payment into
// a failure.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	o, err := v.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			v.try(ctx, audit.Entry{
				Action: "payment_verification_order_not_found", Risk: audit.RiskMedium,
				OrderID: req.OrderID, RequestID: req.RequestID,
			})
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	if req.Method != o.PaymentMethod {
		v.try(ctx, audit.Entry{
			Action: "payment_method_mismatch", Risk: audit.RiskHigh,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"claimed": req.Method, "stored": o.PaymentMethod},
		})
		return nil, ErrMethodMismatch
	}

	if req.Amount != "" {
		if err := v.checkAmount(o, req.Amount); err != nil {
			v.try(ctx, audit.Entry{
				Action: "payment_amount_mismatch", Risk: audit.RiskCritical,
				OrderID: o.ID, RequestID: req.RequestID,
				Detail: map[string]any{"claimed": req.Amount, "stored": o.Total},
			})
			return nil, err
		}
	}

	if o.Status.Confirmed() {
		v.try(ctx, audit.Entry{
			Action: "duplicate_confirmation_attempt", Risk: audit.RiskMedium,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"status": string(o.Status)},
		})
		return &Result{Verified: true, Message: "already confirmed", Order: o}, nil
	}

	strategy, ok := v.strategies[req.Method]
	if !ok {
		v.try(ctx, audit.Entry{
			Action: "unsupported_payment_method", Risk: audit.RiskHigh,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"method": req.Method},
		})
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}

	verified, detail, verr := strategy(ctx, o, req)

	txStatus := TxPending
	if verified {
		txStatus = TxCompleted
	} else if verr != nil {
		txStatus = TxFailed
	}
	if err := v.txs.Create(ctx, &Transaction{
		OrderID:         o.ID,
		Method:          req.Method,
		Amount:          req.Amount,
		Reference:       req.Reference,
		Status:          txStatus,
		GatewayResponse: detail,
	}); err != nil {
		v.logger.Error("record payment transaction failed", "order_id", o.ID, "err", err)
	}

	if verr != nil {
		v.try(ctx, audit.Entry{
			Action: "payment_verification_failed", Risk: audit.RiskHigh,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"method": req.Method, "reason": verr.Error()},
		})
		if v.events != nil {
			if err := v.events.PublishPaymentEvent(ctx, messaging.KeyPaymentRejected, v.buildEvent(o, req, false)); err != nil {
				v.logger.Error("publish payment event failed", "order_id", o.ID, "err", err)
			}
		}
		return &Result{Verified: false, Order: o, Detail: detail}, verr
	}

	if !verified {
		v.try(ctx, audit.Entry{
			Action: "payment_pending_manual_review", Risk: audit.RiskLow,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"method": req.Method},
		})
		return &Result{
			Verified: false,
			Message:  "awaiting manual confirmation",
			Order:    o,
			Detail:   detail,
		}, nil
	}

	won, err := v.orders.ConfirmIfPending(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("confirm order: %w", err)
	}
	if !won {
		// a concurrent delivery confirmed between our read and update
		v.try(ctx, audit.Entry{
			Action: "duplicate_confirmation_attempt", Risk: audit.RiskMedium,
			OrderID: o.ID, RequestID: req.RequestID,
			Detail: map[string]any{"race": true},
		})
		o.Status = order.StatusConfirmed
		return &Result{Verified: true, Message: "already confirmed", Order: o, Detail: detail}, nil
	}

	o.Status = order.StatusConfirmed
	now := time.Now().UTC()
	o.ConfirmedAt = &now

	v.try(ctx, audit.Entry{
		Action: "payment_verified", Risk: audit.RiskLow,
		OrderID: o.ID, RequestID: req.RequestID,
		Detail: map[string]any{"method": req.Method, "reference": req.Reference},
	})

	v.runSideEffects(ctx, o, req)

	return &Result{Verified: true, Order: o, Detail: detail}, nil
}

func (v *Verifier) checkAmount(o *order.Order, claimed string) error {
	claimedDec, err := decimal.NewFromString(claimed)
	if err != nil {
		return fmt.Errorf("%w: unparseable amount %q", ErrAmountMismatch, claimed)
	}
	total, err := decimal.NewFromString(o.Total)
	if err != nil {
		return fmt.Errorf("order %s has unparseable total %q", o.ID, o.Total)
	}
	if claimedDec.Sub(total).Abs().GreaterThan(v.tolerance) {
		return ErrAmountMismatch
	}
	return nil
}

// runSideEffects handles the post-confirmation work: stock decrement,
// confirmation email, event publish, status broadcast. Only reached by
// the call that won the pending->confirmed transition, so none of it
// can run twice for one order. Failures are logged, never surfaced.
func (v *Verifier) runSideEffects(ctx context.Context, o *order.Order, req VerifyRequest) {
	items, err := v.orders.GetItems(ctx, o.ID)
	if err != nil {
		v.logger.Error("load items for stock decrement failed", "order_id", o.ID, "err", err)
	}
	for _, it := range items {
		if err := v.products.AdjustStock(ctx, it.ProductID, -it.Quantity, product.ReasonSale); err != nil {
			v.logger.Error("stock decrement failed",
				"order_id", o.ID, "product_id", it.ProductID, "qty", it.Quantity, "err", err)
		}
	}

	if v.mail != nil {
		if err := v.mail.SendOrderConfirmation(ctx, mailer.ConfirmationEmail{
			To:          o.Email,
			OrderNumber: o.OrderNumber,
			Total:       o.Total,
		}); err != nil {
			v.logger.Error("confirmation email failed", "order_id", o.ID, "err", err)
		}
	}

	if v.events != nil {
		if err := v.events.PublishPaymentEvent(ctx, messaging.KeyPaymentConfirmed, v.buildEvent(o, req, true)); err != nil {
			v.logger.Error("publish payment event failed", "order_id", o.ID, "err", err)
		}
	}

	if v.broadcast != nil {
		v.broadcast.Broadcast(ws.StatusUpdate{
			OrderNumber: o.OrderNumber,
			Status:      string(order.StatusConfirmed),
		})
	}
}

func (v *Verifier) buildEvent(o *order.Order, req VerifyRequest, verified bool) messaging.PaymentEvent {
	return messaging.PaymentEvent{
		EventID:     uuid.NewString(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Method:      req.Method,
		Amount:      o.Total,
		Reference:   req.Reference,
		Verified:    verified,
		OccurredAt:  time.Now().UTC(),
	}
}

func (v *Verifier) try(ctx context.Context, e audit.Entry) {
	audit.Try(ctx, v.auditLog, v.logger, e)
}

// verifyPayFast checks the gateway's evidence. A full notification
// gets a signature check plus the server-to-server validate callback;
// a return-redirect claim carries only the gateway payment id, which
// is accepted pending the notify callback's authoritative signal.
func (v *Verifier) verifyPayFast(ctx context.Context, o *order.Order, req VerifyRequest) (bool, map[string]any, error) {
	if len(req.Fields) > 0 {
		if err := v.gateway.CheckSignature(req.Fields); err != nil {
			return false, map[string]any{"signature_valid": false}, err
		}
		detail := map[string]any{"signature_valid": true}
		if err := v.gateway.ValidateNotification(ctx, req.Fields); err != nil {
			if errors.Is(err, payfast.ErrInvalidITN) {
				detail["gateway_validate"] = "invalid"
				return false, detail, err
			}
			// validate endpoint unreachable or breaker open: the
			// signature already authenticated the payload
			v.logger.Warn("payfast validate unavailable, accepting on signature",
				"order_id", o.ID, "err", err)
			detail["gateway_validate"] = "skipped"
			return true, detail, nil
		}
		detail["gateway_validate"] = "valid"
		return true, detail, nil
	}

	if req.Reference == "" {
		return false, nil, ErrMissingReference
	}
	return true, map[string]any{"pf_payment_id": req.Reference, "source": "return_redirect"}, nil
}

func (v *Verifier) verifyCard(ctx context.Context, o *order.Order, req VerifyRequest) (bool, map[string]any, error) {
	if req.Reference == "" {
		return false, nil, ErrMissingReference
	}
	if v.card == nil {
		return false, nil, ErrNoCardGateway
	}
	status, raw, err := v.card.CheckPayment(ctx, req.Reference)
	if err != nil {
		return false, nil, err
	}
	detail := map[string]any{"gateway_status": status, "raw": raw}
	switch status {
	case "succeeded", "paid", "settled":
		return true, detail, nil
	default:
		return false, detail, nil
	}
}

// manualReview covers EFT and cash on delivery: never auto-verified,
// confirmed later by an operator once the money shows up.
func manualReview(ctx context.Context, o *order.Order, req VerifyRequest) (bool, map[string]any, error) {
	return false, map[string]any{"review": "manual"}, nil
}
