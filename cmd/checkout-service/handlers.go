package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karoocart/checkout-service/internal/checkout"
	"github.com/karoocart/checkout-service/internal/httpx"
	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payfast"
	"github.com/karoocart/checkout-service/internal/payment"
	"github.com/karoocart/checkout-service/internal/product"
	"github.com/karoocart/checkout-service/internal/session"
	"github.com/karoocart/checkout-service/internal/ws"
)

const sessionHeader = "X-Session-ID"

// createCheckoutHandler godoc
// @Summary Create a pending order from the cart and prepare the gateway handoff
// @Accept json
// @Produce json
// @Success 201 {object} checkout.Result
// @Failure 400 {object} product.HTTPError
// @Router /api/checkout [post]
func createCheckoutHandler(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		res, err := svc.Checkout(c.Request.Context(), c.GetHeader(sessionHeader), req)
		if err != nil {
			switch {
			case errors.Is(err, checkout.ErrEmptyCart),
				errors.Is(err, checkout.ErrEmailRequired),
				errors.Is(err, payment.ErrUnsupportedMethod):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, checkout.ErrInsufficientStock):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, product.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
			}
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// payfastPageHandler serves the auto-submitting handoff page for a
// pending order, with the delayed manual-recovery actions baked in.
func payfastPageHandler(repo order.Repository, engine *payfast.Engine, fallbackDelay time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := repo.GetByNumber(c.Request.Context(), c.Param("number"))
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if o.PaymentMethod != payment.MethodPayFast || o.Status != order.StatusPending {
			c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting gateway payment"})
			return
		}
		fields, err := engine.Fields(payfast.PaymentRequest{
			PaymentID:    o.OrderNumber,
			Amount:       o.Total,
			ItemName:     "KarooCart order " + o.OrderNumber,
			EmailAddress: o.Email,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := engine.RenderForm(c.Writer, fields, int(fallbackDelay.Milliseconds())); err != nil {
			// response already started; nothing left to salvage
			_ = c.Error(err)
		}
	}
}

// VerifyPaymentRequest is the server verification entry point payload.
// swagger:model VerifyPaymentRequest
type VerifyPaymentRequest struct {
	OrderID          string `json:"orderId"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentReference string `json:"paymentReference,omitempty"`
	Amount           string `json:"amount,omitempty"`
	Signature        string `json:"signature,omitempty"`
}

// verifyPaymentHandler godoc
// @Summary Verify a claimed payment against its order
// @Accept json
// @Produce json
// @Success 200 {object} payment.Result
// @Failure 400 {object} product.HTTPError
// @Router /api/payments/verify [post]
func verifyPaymentHandler(v *payment.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.OrderID == "" || req.PaymentMethod == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "orderId and paymentMethod are required"})
			return
		}
		res, err := v.Verify(c.Request.Context(), payment.VerifyRequest{
			OrderID:   req.OrderID,
			Method:    req.PaymentMethod,
			Reference: req.PaymentReference,
			Amount:    req.Amount,
			Signature: req.Signature,
			RequestID: httpx.GetRequestID(c),
		})
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, payment.ErrOrderNotFound):
				status = http.StatusNotFound
			case errors.Is(err, payment.ErrMethodMismatch),
				errors.Is(err, payment.ErrAmountMismatch),
				errors.Is(err, payment.ErrUnsupportedMethod),
				errors.Is(err, payment.ErrMissingReference),
				errors.Is(err, payfast.ErrBadSignature):
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"success": false, "verified": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":            true,
			"verified":           res.Verified,
			"message":            res.Message,
			"order":              res.Order,
			"verificationResult": res.Detail,
		})
	}
}

// SuccessRequest carries the gateway return parameters the success
// page received, all optional.
// swagger:model SuccessRequest
type SuccessRequest struct {
	PFPaymentID string `json:"pf_payment_id,omitempty"`
	MerchantID  string `json:"merchant_id,omitempty"`
	AmountGross string `json:"amount_gross,omitempty"`
	MPaymentID  string `json:"m_payment_id,omitempty"`
}

func orderSuccessHandler(r *checkout.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SuccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		res, err := r.Resolve(c.Request.Context(), c.GetHeader(sessionHeader), httpx.GetRequestID(c),
			checkout.ReturnParams{
				PFPaymentID: req.PFPaymentID,
				MerchantID:  req.MerchantID,
				AmountGross: req.AmountGross,
				MPaymentID:  req.MPaymentID,
			})
		if err != nil {
			if errors.Is(err, checkout.ErrNoReference) {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "we could not find your order reference, please contact support",
				})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error":   "we could not confirm your payment, please contact support",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
	}
}

// payfastNotifyHandler receives the gateway's server-to-server ITN
// POST. PayFast retries on non-200, so anything after basic parsing
// answers 200 and the verification outcome lives in the audit trail.
func payfastNotifyHandler(repo order.Repository, v *payment.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.String(http.StatusBadRequest, "bad notification")
			return
		}
		fields := make(map[string]string, len(c.Request.PostForm))
		for k := range c.Request.PostForm {
			fields[k] = c.Request.PostForm.Get(k)
		}
		ref := fields["m_payment_id"]
		if ref == "" {
			c.String(http.StatusBadRequest, "missing m_payment_id")
			return
		}
		o, err := repo.GetByNumber(c.Request.Context(), ref)
		if err != nil {
			c.String(http.StatusOK, "OK")
			return
		}
		_, _ = v.Verify(c.Request.Context(), payment.VerifyRequest{
			OrderID:   o.ID,
			Method:    payment.MethodPayFast,
			Reference: fields["pf_payment_id"],
			Amount:    fields["amount_gross"],
			Signature: fields["signature"],
			Fields:    fields,
			RequestID: httpx.GetRequestID(c),
		})
		c.String(http.StatusOK, "OK")
	}
}

// orderCancelHandler handles the gateway's cancel-URL return.
func orderCancelHandler(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), c.GetHeader(sessionHeader), c.Param("number"))
		if err != nil {
			switch {
			case errors.Is(err, order.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			default:
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_number": o.OrderNumber, "status": o.Status})
	}
}

// orderLookupHandler godoc
// @Summary Guest order lookup by number and email
// @Produce json
// @Success 200 {object} order.View
// @Failure 404 {object} product.HTTPError
// @Router /api/orders/lookup/{number} [get]
func orderLookupHandler(repo order.Repository, txs payment.TransactionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}
		o, err := repo.GetByNumberAndEmail(c.Request.Context(), c.Param("number"), email)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		items, err := repo.GetItems(c.Request.Context(), o.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		payments, err := txs.ListByOrder(c.Request.Context(), o.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": items, "payments": payments})
	}
}

type cartReader interface {
	Cart(ctx context.Context, sessionID string) (*session.Cart, error)
}

// cartSnapshotHandler returns the cart saved at checkout time so the
// storefront can restore it after an abandoned gateway handoff.
func cartSnapshotHandler(sessions cartReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(sessionHeader)
		if sid == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
			return
		}
		cart, err := sessions.Cart(c.Request.Context(), sid)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no saved cart"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cart lookup failed"})
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func wsOrderHandler(h *ws.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.ServeOrder(c.Writer, c.Request, c.Param("number"))
	}
}
