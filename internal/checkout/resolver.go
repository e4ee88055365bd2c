package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payment"
	"github.com/karoocart/checkout-service/internal/session"
)

// Sources tagged onto order processing for observability.
const (
	SourceGatewayReturn     = "gateway-return"
	SourceFallbackReference = "fallback-reference"
)

var ErrNoReference = errors.New("no order reference")

// ReturnParams are the query parameters PayFast appends to the return
// redirect. Any of them may be absent.
type ReturnParams struct {
	PFPaymentID string // gateway-assigned payment id
	MerchantID  string
	AmountGross string
	MPaymentID  string // echoed internal reference (order number)
}

// PaymentVerifier is the slice of the verifier the resolver invokes.
type PaymentVerifier interface {
	Verify(ctx context.Context, req payment.VerifyRequest) (*payment.Result, error)
}

// Resolution is what the success page renders.
type Resolution struct {
	OrderNumber string      `json:"order_number"`
	Source      string      `json:"source"`
	Confirmed   bool        `json:"confirmed"`
	Message     string      `json:"message,omitempty"`
	View        *order.View `json:"order,omitempty"`
}

type Resolver struct {
	orders   order.Repository
	verifier PaymentVerifier
	sessions SessionStore
	logger   *slog.Logger
}

func NewResolver(orders order.Repository, verifier PaymentVerifier, sessions SessionStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{orders: orders, verifier: verifier, sessions: sessions, logger: logger}
}

// Resolve turns a gateway return (or a bare success-page load) into a
// confirmed, displayable order.
//
// The return-URL reference wins; the session fallback covers gateways
// that omit it. Neither present is unrecoverable and fails before any
// order processing. An order that is not visible yet is not an error:
// the notify callback may still be in flight, so the caller gets a
// reference-only acknowledgement and the cart is still cleared.
func (r *Resolver) Resolve(ctx context.Context, sessionID, requestID string, params ReturnParams) (*Resolution, error) {
	ref := params.MPaymentID
	source := SourceGatewayReturn
	if ref == "" {
		source = SourceFallbackReference
		stored, err := r.sessions.PendingReference(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrNoReference
			}
			return nil, fmt.Errorf("load fallback reference: %w", err)
		}
		ref = stored
	}

	r.logger.Info("resolving order success", "order_number", ref, "source", source,
		"pf_payment_id", params.PFPaymentID)

	o, err := r.orders.GetByNumber(ctx, ref)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			// read-after-write lag on the order record; expected, not
			// exceptional
			r.clearCart(ctx, sessionID)
			return &Resolution{
				OrderNumber: ref,
				Source:      source,
				Message:     "order received, confirmation to follow by email",
			}, nil
		}
		return nil, fmt.Errorf("lookup order %s: %w", ref, err)
	}

	res, err := r.verifier.Verify(ctx, payment.VerifyRequest{
		OrderID:   o.ID,
		Method:    o.PaymentMethod,
		Reference: params.PFPaymentID,
		Amount:    params.AmountGross,
		RequestID: requestID,
	})
	if err != nil {
		if errors.Is(err, payment.ErrMissingReference) {
			// bare success-page load with no gateway payment id; the
			// notify callback carries the authoritative confirmation
			r.clearCart(ctx, sessionID)
			return &Resolution{
				OrderNumber: o.OrderNumber,
				Source:      source,
				Message:     "order received, confirmation to follow by email",
			}, nil
		}
		return nil, fmt.Errorf("process order %s: %w", ref, err)
	}

	items, err := r.orders.GetItems(ctx, o.ID)
	if err != nil {
		r.logger.Warn("load order items failed", "order_id", o.ID, "err", err)
	}

	r.clearCart(ctx, sessionID)
	if err := r.sessions.ClearPendingReference(ctx, sessionID); err != nil {
		r.logger.Warn("clear pending reference failed", "session_id", sessionID, "err", err)
	}

	return &Resolution{
		OrderNumber: o.OrderNumber,
		Source:      source,
		Confirmed:   res.Verified,
		Message:     res.Message,
		View:        &order.View{Order: res.Order, Items: items},
	}, nil
}

func (r *Resolver) clearCart(ctx context.Context, sessionID string) {
	if err := r.sessions.ClearCart(ctx, sessionID); err != nil {
		r.logger.Warn("clear cart failed", "session_id", sessionID, "err", err)
	}
}
