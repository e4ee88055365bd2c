package payfast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	LiveValidateURL    = "https://www.payfast.co.za/eng/query/validate"
	SandboxValidateURL = "https://sandbox.payfast.co.za/eng/query/validate"
)

var (
	ErrBadSignature = errors.New("payfast signature mismatch")
	ErrInvalidITN   = errors.New("payfast reported notification invalid")
)

// Client performs server-to-server validation of gateway
// notifications. The validate callback goes through a circuit breaker
// so a gateway outage degrades to signature-only verification instead
// of hanging every confirmation.
type Client struct {
	HTTP        *http.Client
	Passphrase  string
	ValidateURL string

	breaker *gobreaker.CircuitBreaker[bool]
}

func NewClient(validateURL, passphrase string) *Client {
	st := gobreaker.Settings{
		Name:    "payfast-validate",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Client{
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Passphrase:  passphrase,
		ValidateURL: validateURL,
		breaker:     gobreaker.NewCircuitBreaker[bool](st),
	}
}

// CheckSignature recomputes the signature over the received fields and
// compares it with the one the notification carried.
func (c *Client) CheckSignature(fields map[string]string) error {
	got := fields["signature"]
	if got == "" {
		return ErrBadSignature
	}
	if Sign(fields, c.Passphrase) != strings.ToLower(got) {
		return ErrBadSignature
	}
	return nil
}

// ValidateNotification posts the received fields back to the gateway,
// which answers VALID or INVALID. A tripped breaker or transport error
// is returned as-is so the caller can decide whether signature-only
// verification suffices.
func (c *Client) ValidateNotification(ctx context.Context, fields map[string]string) error {
	if c.ValidateURL == "" {
		return nil
	}
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	_, err := c.breaker.Execute(func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ValidateURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		res, err := c.HTTP.Do(req)
		if err != nil {
			return false, err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return false, fmt.Errorf("validate returned %s", res.Status)
		}
		body, err := io.ReadAll(io.LimitReader(res.Body, 1024))
		if err != nil {
			return false, err
		}
		if !strings.HasPrefix(strings.TrimSpace(string(body)), "VALID") {
			return false, ErrInvalidITN
		}
		return true, nil
	})
	return err
}
