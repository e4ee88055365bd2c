package payfast

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/shopspring/decimal"
)

const (
	LiveProcessURL    = "https://www.payfast.co.za/eng/process"
	SandboxProcessURL = "https://sandbox.payfast.co.za/eng/process"
)

var ErrFormUnavailable = errors.New("payment form unavailable")

// Engine holds the merchant-level configuration shared by every
// checkout. Per-order data arrives in PaymentRequest.
type Engine struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Sandbox     bool
	ReturnURL   string
	CancelURL   string
	NotifyURL   string

	// ProcessURL overrides the gateway endpoint; tests point it at a
	// local server. Empty selects the sandbox/live URL.
	ProcessURL string
}

// PaymentRequest is the per-checkout payload. PaymentID carries the
// order number and is echoed back by the gateway as m_payment_id.
type PaymentRequest struct {
	PaymentID       string
	Amount          string // 2-decimal string, e.g. "149.99"
	ItemName        string
	ItemDescription string
	NameFirst       string
	EmailAddress    string
}

// fieldOrder is the order fields are rendered into the form; the
// signature itself is computed over the sorted set, not this order.
var fieldOrder = []string{
	"merchant_id", "merchant_key",
	"return_url", "cancel_url", "notify_url",
	"name_first", "email_address",
	"m_payment_id", "amount", "item_name", "item_description",
	"signature",
}

// Endpoint is the gateway process URL for the configured mode.
func (e *Engine) Endpoint() string {
	if e.ProcessURL != "" {
		return e.ProcessURL
	}
	if e.Sandbox {
		return SandboxProcessURL
	}
	return LiveProcessURL
}

// Validate checks the request locally before anything is signed or
// rendered. No network call is made on failure.
func (e *Engine) Validate(req PaymentRequest) error {
	switch {
	case e.MerchantID == "":
		return errors.New("merchant id is required")
	case e.MerchantKey == "":
		return errors.New("merchant key is required")
	case e.ReturnURL == "":
		return errors.New("return url is required")
	case e.CancelURL == "":
		return errors.New("cancel url is required")
	case req.PaymentID == "":
		return errors.New("payment id is required")
	case req.ItemName == "":
		return errors.New("item name is required")
	case req.Amount == "":
		return errors.New("amount is required")
	}
	amt, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", req.Amount)
	}
	if !amt.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amt)
	}
	return nil
}

// Fields assembles and signs the gateway field set.
func (e *Engine) Fields(req PaymentRequest) (map[string]string, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}
	f := map[string]string{
		"merchant_id":      e.MerchantID,
		"merchant_key":     e.MerchantKey,
		"return_url":       e.ReturnURL,
		"cancel_url":       e.CancelURL,
		"notify_url":       e.NotifyURL,
		"m_payment_id":     req.PaymentID,
		"amount":           req.Amount,
		"item_name":        req.ItemName,
		"item_description": req.ItemDescription,
		"name_first":       req.NameFirst,
		"email_address":    req.EmailAddress,
	}
	f["signature"] = Sign(f, e.Passphrase)
	return f, nil
}

// RedirectURL builds the manual-recovery GET URL carrying all fields
// as query parameters, for when the auto-submitting form never leaves
// the page.
func (e *Engine) RedirectURL(fields map[string]string) string {
	q := url.Values{}
	for k, v := range fields {
		if v != "" {
			q.Set(k, v)
		}
	}
	return e.Endpoint() + "?" + q.Encode()
}

type formField struct {
	Name  string
	Value string
}

type formPage struct {
	Action      string
	Fields      []formField
	FallbackURL string
	DelayMS     int
}

// RenderForm writes the auto-submitting handoff page. The page posts
// itself to the gateway on load; if the browser is still here after
// the delay it reveals the manual actions (GET redirect, resubmit in
// a new tab).
func (e *Engine) RenderForm(w io.Writer, fields map[string]string, fallbackDelayMS int) error {
	if fields == nil {
		return ErrFormUnavailable
	}
	page := formPage{
		Action:      e.Endpoint(),
		FallbackURL: e.RedirectURL(fields),
		DelayMS:     fallbackDelayMS,
	}
	for _, name := range fieldOrder {
		if v := fields[name]; v != "" {
			page.Fields = append(page.Fields, formField{Name: name, Value: v})
		}
	}
	return formTmpl.Execute(w, page)
}

var formTmpl = template.Must(template.New("payfast").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to PayFast…</title></head>
<body onload="document.getElementById('pf').submit();setTimeout(function(){document.getElementById('fallback').style.display='block';},{{.DelayMS}});">
<p>Redirecting you to the payment page…</p>
<form id="pf" action="{{.Action}}" method="post">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
</form>
<div id="fallback" style="display:none">
<p>Still here? The redirect may have been blocked.</p>
<p><a href="{{.FallbackURL}}">Continue to PayFast</a></p>
<p><button type="submit" form="pf" formtarget="_blank">Open payment page in a new tab</button></p>
</div>
</body>
</html>
`))
