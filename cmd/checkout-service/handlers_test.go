package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karoocart/checkout-service/internal/audit"
	"github.com/karoocart/checkout-service/internal/checkout"
	"github.com/karoocart/checkout-service/internal/order"
	"github.com/karoocart/checkout-service/internal/payfast"
	"github.com/karoocart/checkout-service/internal/payment"
	"github.com/karoocart/checkout-service/internal/product"
	"github.com/karoocart/checkout-service/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- stubs ----

type ordersStub struct {
	orders map[string]*order.Order // keyed by id
	items  map[string][]order.Item
}

func newOrdersStub(os ...*order.Order) *ordersStub {
	s := &ordersStub{
		orders: make(map[string]*order.Order),
		items:  make(map[string][]order.Item),
	}
	for _, o := range os {
		cp := *o
		s.orders[o.ID] = &cp
	}
	return s
}

func (s *ordersStub) Create(_ context.Context, o *order.Order, items []order.Item) error {
	cp := *o
	s.orders[o.ID] = &cp
	s.items[o.ID] = items
	return nil
}

func (s *ordersStub) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *ordersStub) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range s.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *ordersStub) GetByNumberAndEmail(_ context.Context, number, email string) (*order.Order, error) {
	for _, o := range s.orders {
		if o.OrderNumber == number && o.Email == email {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *ordersStub) GetItems(_ context.Context, orderID string) ([]order.Item, error) {
	return s.items[orderID], nil
}

func (s *ordersStub) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *ordersStub) ConfirmIfPending(_ context.Context, id string) (bool, error) {
	o, ok := s.orders[id]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusConfirmed
	now := time.Now().UTC()
	o.ConfirmedAt = &now
	return true, nil
}

type productsStub struct {
	catalog map[string]*product.Product
}

func (s *productsStub) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.catalog[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *productsStub) AdjustStock(_ context.Context, id string, delta int, _ string) error {
	p, ok := s.catalog[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock += delta
	return nil
}

type sessionsStub struct {
	refs  map[string]string
	carts map[string]*session.Cart
}

func newSessionsStub() *sessionsStub {
	return &sessionsStub{refs: make(map[string]string), carts: make(map[string]*session.Cart)}
}

func (s *sessionsStub) SetPendingReference(_ context.Context, sid, num string) error {
	s.refs[sid] = num
	return nil
}

func (s *sessionsStub) PendingReference(_ context.Context, sid string) (string, error) {
	ref, ok := s.refs[sid]
	if !ok {
		return "", session.ErrNotFound
	}
	return ref, nil
}

func (s *sessionsStub) ClearPendingReference(_ context.Context, sid string) error {
	delete(s.refs, sid)
	return nil
}

func (s *sessionsStub) SetCart(_ context.Context, sid string, cart *session.Cart) error {
	s.carts[sid] = cart
	return nil
}

func (s *sessionsStub) ClearCart(_ context.Context, sid string) error {
	delete(s.carts, sid)
	return nil
}

func (s *sessionsStub) Cart(_ context.Context, sid string) (*session.Cart, error) {
	cart, ok := s.carts[sid]
	if !ok {
		return nil, session.ErrNotFound
	}
	return cart, nil
}

type auditStub struct{ entries []audit.Entry }

func (s *auditStub) Record(_ context.Context, e audit.Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

type txsStub struct{ created []payment.Transaction }

func (s *txsStub) Create(_ context.Context, tx *payment.Transaction) error {
	s.created = append(s.created, *tx)
	return nil
}

func (s *txsStub) ListByOrder(_ context.Context, orderID string) ([]payment.Transaction, error) {
	var out []payment.Transaction
	for _, tx := range s.created {
		if tx.OrderID == orderID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ---- fixtures ----

func testEngine() *payfast.Engine {
	return &payfast.Engine{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Sandbox:     true,
		ReturnURL:   "https://store.example/checkout/success",
		CancelURL:   "https://store.example/checkout/cancel",
		NotifyURL:   "https://store.example/payfast/notify",
	}
}

func pendingOrder() *order.Order {
	return &order.Order{
		ID:            "ord-1",
		OrderNumber:   "KC-7001",
		Email:         "jan@example.com",
		Status:        order.StatusPending,
		PaymentMethod: payment.MethodPayFast,
		Total:         "149.99",
	}
}

func testVerifier(orders order.Repository) (*payment.Verifier, *txsStub) {
	txs := &txsStub{}
	v := payment.NewVerifier(payment.VerifierConfig{
		Orders:       orders,
		Transactions: txs,
		Products:     &productsStub{catalog: map[string]*product.Product{}},
		Gateway:      payfast.NewClient("", ""),
		Audit:        &auditStub{},
		Logger:       discardLogger(),
	})
	return v, txs
}

func doJSON(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- checkout ----

func checkoutRouter(orders *ordersStub, sessions *sessionsStub) *gin.Engine {
	products := &productsStub{catalog: map[string]*product.Product{
		"p1": {ID: "p1", Name: "Rooibos gift box", Price: "49.99", Stock: 10},
	}}
	svc := checkout.NewService(orders, products, sessions, testEngine(), &auditStub{}, discardLogger())
	r := gin.New()
	r.POST("/api/checkout", createCheckoutHandler(svc))
	return r
}

func TestCreateCheckout_InvalidJSON(t *testing.T) {
	r := checkoutRouter(newOrdersStub(), newSessionsStub())
	w := doJSON(r, http.MethodPost, "/api/checkout", "{not json", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateCheckout_CreatesOrderWithHandoff(t *testing.T) {
	orders := newOrdersStub()
	sessions := newSessionsStub()
	r := checkoutRouter(orders, sessions)

	w := doJSON(r, http.MethodPost, "/api/checkout", order.CheckoutRequest{
		Email:         "jan@example.com",
		NameFirst:     "Jan",
		PaymentMethod: payment.MethodPayFast,
		Items:         []order.CheckoutItem{{ProductID: "p1", Quantity: 2}},
	}, map[string]string{sessionHeader: "sess-1"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var res checkout.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Total != "99.98" {
		t.Errorf("total = %q, want 99.98", res.Total)
	}
	if res.Status != order.StatusPending {
		t.Errorf("status = %q, want pending", res.Status)
	}
	if res.Payment == nil || res.Payment.ProcessURL != payfast.SandboxProcessURL {
		t.Errorf("payment instructions missing or wrong endpoint: %+v", res.Payment)
	}
	if sessions.refs["sess-1"] != res.OrderNumber {
		t.Errorf("pending reference = %q, want %q", sessions.refs["sess-1"], res.OrderNumber)
	}
}

func TestCreateCheckout_UnsupportedMethod(t *testing.T) {
	r := checkoutRouter(newOrdersStub(), newSessionsStub())
	w := doJSON(r, http.MethodPost, "/api/checkout", order.CheckoutRequest{
		Email:         "jan@example.com",
		PaymentMethod: "crypto",
		Items:         []order.CheckoutItem{{ProductID: "p1", Quantity: 1}},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestCreateCheckout_InsufficientStock(t *testing.T) {
	r := checkoutRouter(newOrdersStub(), newSessionsStub())
	w := doJSON(r, http.MethodPost, "/api/checkout", order.CheckoutRequest{
		Email:         "jan@example.com",
		PaymentMethod: payment.MethodPayFast,
		Items:         []order.CheckoutItem{{ProductID: "p1", Quantity: 99}},
	}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestCartSnapshot(t *testing.T) {
	sessions := newSessionsStub()
	sessions.carts["sess-1"] = &session.Cart{Items: []session.CartItem{{ProductID: "p1", Quantity: 2}}}
	r := gin.New()
	r.GET("/api/checkout/cart", cartSnapshotHandler(sessions))

	w := doJSON(r, http.MethodGet, "/api/checkout/cart", nil, map[string]string{sessionHeader: "sess-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var cart session.Cart
	if err := json.Unmarshal(w.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p1" {
		t.Errorf("cart = %+v, want one p1 line", cart)
	}

	w = doJSON(r, http.MethodGet, "/api/checkout/cart", nil, map[string]string{sessionHeader: "sess-2"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d for unknown session, want 404", w.Code)
	}
	w = doJSON(r, http.MethodGet, "/api/checkout/cart", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d without session header, want 400", w.Code)
	}
}

// ---- payfast handoff page ----

func pageRouter(orders *ordersStub) *gin.Engine {
	r := gin.New()
	r.GET("/checkout/payfast/:number", payfastPageHandler(orders, testEngine(), 5*time.Second))
	return r
}

func TestPayfastPage_ServesForm(t *testing.T) {
	r := pageRouter(newOrdersStub(pendingOrder()))
	w := doJSON(r, http.MethodGet, "/checkout/payfast/KC-7001", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	body := w.Body.String()
	for _, want := range []string{payfast.SandboxProcessURL, "10000100", "KC-7001", "signature"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestPayfastPage_UnknownOrder(t *testing.T) {
	r := pageRouter(newOrdersStub())
	w := doJSON(r, http.MethodGet, "/checkout/payfast/KC-9999", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestPayfastPage_OrderAlreadyConfirmed(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusConfirmed
	r := pageRouter(newOrdersStub(o))
	w := doJSON(r, http.MethodGet, "/checkout/payfast/KC-7001", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

// ---- verify ----

func verifyRouter(orders *ordersStub) *gin.Engine {
	v, _ := testVerifier(orders)
	r := gin.New()
	r.POST("/api/payments/verify", verifyPaymentHandler(v))
	return r
}

func TestVerifyPayment_RequiresOrderAndMethod(t *testing.T) {
	r := verifyRouter(newOrdersStub())
	w := doJSON(r, http.MethodPost, "/api/payments/verify",
		VerifyPaymentRequest{PaymentReference: "pf-1"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestVerifyPayment_OrderNotFound(t *testing.T) {
	r := verifyRouter(newOrdersStub())
	w := doJSON(r, http.MethodPost, "/api/payments/verify", VerifyPaymentRequest{
		OrderID: "ghost", PaymentMethod: payment.MethodPayFast, PaymentReference: "pf-1",
	}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestVerifyPayment_ConfirmsOrder(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	r := verifyRouter(orders)

	w := doJSON(r, http.MethodPost, "/api/payments/verify", VerifyPaymentRequest{
		OrderID:          "ord-1",
		PaymentMethod:    payment.MethodPayFast,
		PaymentReference: "pf-12345",
		Amount:           "149.99",
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var res struct {
		Success  bool `json:"success"`
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.Success || !res.Verified {
		t.Errorf("response = %+v, want success and verified", res)
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusConfirmed {
		t.Errorf("order status = %q, want confirmed", got)
	}
}

func TestVerifyPayment_AmountMismatch(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	r := verifyRouter(orders)
	w := doJSON(r, http.MethodPost, "/api/payments/verify", VerifyPaymentRequest{
		OrderID:          "ord-1",
		PaymentMethod:    payment.MethodPayFast,
		PaymentReference: "pf-12345",
		Amount:           "99.99",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusPending {
		t.Errorf("order status = %q, want pending after rejected claim", got)
	}
}

// ---- success resolution ----

func successRouter(orders *ordersStub, sessions *sessionsStub) *gin.Engine {
	v, _ := testVerifier(orders)
	resolver := checkout.NewResolver(orders, v, sessions, discardLogger())
	r := gin.New()
	r.POST("/api/orders/success", orderSuccessHandler(resolver))
	return r
}

func TestOrderSuccess_NoReferenceAnywhere(t *testing.T) {
	r := successRouter(newOrdersStub(), newSessionsStub())
	w := doJSON(r, http.MethodPost, "/api/orders/success", SuccessRequest{},
		map[string]string{sessionHeader: "sess-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "contact support") {
		t.Errorf("body %q should point the shopper at support", w.Body.String())
	}
}

func TestOrderSuccess_ResolvesGatewayReturn(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	sessions := newSessionsStub()
	r := successRouter(orders, sessions)

	w := doJSON(r, http.MethodPost, "/api/orders/success", SuccessRequest{
		PFPaymentID: "pf-12345",
		AmountGross: "149.99",
		MPaymentID:  "KC-7001",
	}, map[string]string{sessionHeader: "sess-1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusConfirmed {
		t.Errorf("order status = %q, want confirmed", got)
	}
}

// ---- notify ----

func notifyRouter(orders *ordersStub) (*gin.Engine, *txsStub) {
	v, txs := testVerifier(orders)
	r := gin.New()
	r.POST("/payfast/notify", payfastNotifyHandler(orders, v))
	return r, txs
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPayfastNotify_MissingReference(t *testing.T) {
	r, _ := notifyRouter(newOrdersStub())
	w := postForm(r, "/payfast/notify", url.Values{"payment_status": {"COMPLETE"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPayfastNotify_UnknownOrderStillAcks(t *testing.T) {
	r, txs := notifyRouter(newOrdersStub())
	w := postForm(r, "/payfast/notify", url.Values{"m_payment_id": {"KC-9999"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(txs.created) != 0 {
		t.Errorf("recorded %d transactions for an unknown order", len(txs.created))
	}
}

func TestPayfastNotify_ConfirmsOrder(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	r, txs := notifyRouter(orders)

	fields := map[string]string{
		"m_payment_id":   "KC-7001",
		"pf_payment_id":  "pf-12345",
		"payment_status": "COMPLETE",
		"amount_gross":   "149.99",
	}
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set("signature", payfast.Sign(fields, ""))

	w := postForm(r, "/payfast/notify", form)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("response = %d %q, want 200 OK", w.Code, w.Body.String())
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusConfirmed {
		t.Errorf("order status = %q, want confirmed", got)
	}
	if len(txs.created) != 1 || txs.created[0].Status != payment.TxCompleted {
		t.Errorf("transactions = %+v, want one completed", txs.created)
	}
}

func TestPayfastNotify_TamperedSignatureLeavesOrderPending(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	r, _ := notifyRouter(orders)

	form := url.Values{
		"m_payment_id": {"KC-7001"},
		"amount_gross": {"149.99"},
		"signature":    {"deadbeefdeadbeefdeadbeefdeadbeef"},
	}
	w := postForm(r, "/payfast/notify", form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on rejection", w.Code)
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusPending {
		t.Errorf("order status = %q, want pending after bad signature", got)
	}
}

// ---- guest lookup ----

func lookupRouter(orders *ordersStub, txs *txsStub) *gin.Engine {
	r := gin.New()
	r.GET("/api/orders/lookup/:number", orderLookupHandler(orders, txs))
	return r
}

func TestOrderLookup_RequiresEmail(t *testing.T) {
	r := lookupRouter(newOrdersStub(pendingOrder()), &txsStub{})
	w := doJSON(r, http.MethodGet, "/api/orders/lookup/KC-7001", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOrderLookup_WrongEmailHidesOrder(t *testing.T) {
	r := lookupRouter(newOrdersStub(pendingOrder()), &txsStub{})
	w := doJSON(r, http.MethodGet, "/api/orders/lookup/KC-7001?email=someone@else.example", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestOrderLookup_ReturnsOrderWithHistory(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	orders.items["ord-1"] = []order.Item{{ID: "it-1", OrderID: "ord-1", ProductID: "p1", Name: "Rooibos gift box", Quantity: 2, Price: "49.99"}}
	txs := &txsStub{created: []payment.Transaction{
		{ID: "tx-1", OrderID: "ord-1", Method: payment.MethodPayFast, Status: payment.TxCompleted},
	}}
	r := lookupRouter(orders, txs)

	w := doJSON(r, http.MethodGet, "/api/orders/lookup/KC-7001?email=jan@example.com", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var view struct {
		Order    *order.Order          `json:"order"`
		Items    []order.Item          `json:"items"`
		Payments []payment.Transaction `json:"payments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.Order == nil || view.Order.OrderNumber != "KC-7001" {
		t.Errorf("order = %+v, want KC-7001", view.Order)
	}
	if len(view.Items) != 1 {
		t.Errorf("items = %d, want 1", len(view.Items))
	}
	if len(view.Payments) != 1 || view.Payments[0].Status != payment.TxCompleted {
		t.Errorf("payments = %+v, want one completed", view.Payments)
	}
}

// ---- cancel ----

func cancelRouter(orders *ordersStub, sessions *sessionsStub) *gin.Engine {
	products := &productsStub{catalog: map[string]*product.Product{}}
	svc := checkout.NewService(orders, products, sessions, testEngine(), &auditStub{}, discardLogger())
	r := gin.New()
	r.POST("/api/orders/:number/cancel", orderCancelHandler(svc))
	return r
}

func TestOrderCancel_PendingOrder(t *testing.T) {
	orders := newOrdersStub(pendingOrder())
	sessions := newSessionsStub()
	sessions.refs["sess-1"] = "KC-7001"
	r := cancelRouter(orders, sessions)

	w := doJSON(r, http.MethodPost, "/api/orders/KC-7001/cancel", nil,
		map[string]string{sessionHeader: "sess-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusCancelled {
		t.Errorf("order status = %q, want cancelled", got)
	}
	if _, ok := sessions.refs["sess-1"]; ok {
		t.Error("pending reference should be cleared on cancel")
	}
}

func TestOrderCancel_ConfirmedOrderRefused(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusConfirmed
	orders := newOrdersStub(o)
	r := cancelRouter(orders, newSessionsStub())

	w := doJSON(r, http.MethodPost, "/api/orders/KC-7001/cancel", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	if got := orders.orders["ord-1"].Status; got != order.StatusConfirmed {
		t.Errorf("order status = %q, want confirmed untouched", got)
	}
}

func TestOrderCancel_UnknownOrder(t *testing.T) {
	r := cancelRouter(newOrdersStub(), newSessionsStub())
	w := doJSON(r, http.MethodPost, "/api/orders/KC-9999/cancel", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
