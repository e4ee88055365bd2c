// Package checkout drives the storefront checkout: creating the
// pending order, preparing the gateway handoff, and resolving the
// gateway's return into a confirmed order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karoocart/checkout-service/internal/audit"
	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payfast"
	"github.com/karoocart/checkout-service/internal/payment"
	"github.com/karoocart/checkout-service/internal/product"
	"github.com/karoocart/checkout-service/internal/session"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrEmailRequired     = errors.New("email is required")
	ErrInsufficientStock = errors.New("insufficient stock")
)

func supportedMethod(m string) bool {
	switch m {
	case payment.MethodPayFast, payment.MethodCard, payment.MethodEFT, payment.MethodCOD:
		return true
	}
	return false
}

type Service struct {
	orders   order.Repository
	products product.Repository
	sessions SessionStore
	engine   *payfast.Engine
	auditLog audit.Recorder
	logger   *slog.Logger
}

// SessionStore is the slice of the redis session store the checkout
// flow needs.
type SessionStore interface {
	SetPendingReference(ctx context.Context, sessionID, orderNumber string) error
	PendingReference(ctx context.Context, sessionID string) (string, error)
	ClearPendingReference(ctx context.Context, sessionID string) error
	SetCart(ctx context.Context, sessionID string, cart *session.Cart) error
	ClearCart(ctx context.Context, sessionID string) error
}

func NewService(orders order.Repository, products product.Repository, sessions SessionStore,
	engine *payfast.Engine, auditLog audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orders:   orders,
		products: products,
		sessions: sessions,
		engine:   engine,
		auditLog: auditLog,
		logger:   logger,
	}
}

// PaymentInstructions is what the storefront needs to hand the browser
// to the gateway: the signed fields, where to POST them, and the
// manual-recovery URL for a stalled handoff.
// swagger:model PaymentInstructions
type PaymentInstructions struct {
	ProcessURL  string            `json:"process_url"`
	Fields      map[string]string `json:"fields"`
	FallbackURL string            `json:"fallback_url"`
}

// swagger:model CheckoutResult
type Result struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	Total       string               `json:"total"`
	Status      order.Status         `json:"status"`
	Payment     *PaymentInstructions `json:"payment,omitempty"`
}

func newOrderNumber() string {
	return "KC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Checkout prices the cart from the product table, creates the pending
// order, stores the fallback reference and cart snapshot in the
// session, and for gateway methods returns the signed handoff payload.
func (s *Service) Checkout(ctx context.Context, sessionID string, req order.CheckoutRequest) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if req.Email == "" {
		return nil, ErrEmailRequired
	}
	if !supportedMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: %s", payment.ErrUnsupportedMethod, req.PaymentMethod)
	}

	total := decimal.Zero
	items := make([]order.Item, 0, len(req.Items))
	cart := &session.Cart{}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity %d for product %s", line.Quantity, line.ProductID)
		}
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if p.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, line.ProductID)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s has unparseable price %q", p.ID, p.Price)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, order.Item{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Price:     p.Price,
		})
		cart.Items = append(cart.Items, session.CartItem{ProductID: p.ID, Quantity: line.Quantity})
	}

	o := &order.Order{
		ID:              uuid.NewString(),
		OrderNumber:     newOrderNumber(),
		Email:           req.Email,
		Status:          order.StatusPending,
		PaymentMethod:   req.PaymentMethod,
		Total:           total.StringFixed(2),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	for i := range items {
		items[i].OrderID = o.ID
	}
	if err := s.orders.Create(ctx, o, items); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if sessionID != "" && s.sessions != nil {
		if err := s.sessions.SetPendingReference(ctx, sessionID, o.OrderNumber); err != nil {
			s.logger.Warn("store pending reference failed", "order_number", o.OrderNumber, "err", err)
		}
		if err := s.sessions.SetCart(ctx, sessionID, cart); err != nil {
			s.logger.Warn("store cart snapshot failed", "order_number", o.OrderNumber, "err", err)
		}
	}

	res := &Result{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		Status:      o.Status,
	}

	if req.PaymentMethod == payment.MethodPayFast {
		instructions, err := s.PaymentInstructions(ctx, o, req.NameFirst)
		if err != nil {
			return nil, err
		}
		res.Payment = instructions
	}
	return res, nil
}

// Cancel handles the gateway's cancel return: a pending order is
// marked cancelled and the session's pending reference is dropped so a
// later success-page load cannot resurrect it. Nothing was charged and
// no stock was decremented, so there is nothing else to unwind.
func (s *Service) Cancel(ctx context.Context, sessionID, orderNumber string) (*order.Order, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("order %s is %s, only pending orders can be cancelled", orderNumber, o.Status)
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	o.Status = order.StatusCancelled

	if sessionID != "" && s.sessions != nil {
		if err := s.sessions.ClearPendingReference(ctx, sessionID); err != nil {
			s.logger.Warn("clear pending reference failed", "session_id", sessionID, "err", err)
		}
	}
	audit.Try(ctx, s.auditLog, s.logger, audit.Entry{
		Action: "checkout_cancelled", Risk: audit.RiskLow,
		OrderID: o.ID, Detail: map[string]any{"order_number": o.OrderNumber},
	})
	return o, nil
}

// PaymentInstructions builds and signs the gateway payload for an
// existing pending order. Validation failures are local and reach the
// caller before any audit write or network activity.
func (s *Service) PaymentInstructions(ctx context.Context, o *order.Order, nameFirst string) (*PaymentInstructions, error) {
	req := payfast.PaymentRequest{
		PaymentID:    o.OrderNumber,
		Amount:       o.Total,
		ItemName:     "KarooCart order " + o.OrderNumber,
		NameFirst:    nameFirst,
		EmailAddress: o.Email,
	}
	fields, err := s.engine.Fields(req)
	if err != nil {
		audit.Try(ctx, s.auditLog, s.logger, audit.Entry{
			Action: "payment_form_rejected", Risk: audit.RiskLow,
			OrderID: o.ID, Detail: map[string]any{"reason": err.Error()},
		})
		return nil, err
	}
	audit.Try(ctx, s.auditLog, s.logger, audit.Entry{
		Action: "payment_form_prepared", Risk: audit.RiskLow,
		OrderID: o.ID, Detail: map[string]any{"order_number": o.OrderNumber},
	})
	return &PaymentInstructions{
		ProcessURL:  s.engine.Endpoint(),
		Fields:      fields,
		FallbackURL: s.engine.RedirectURL(fields),
	}, nil
}
