// Package mailer is a thin client for the transactional email sender.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ConfirmationEmail struct {
	To          string `json:"to"`
	OrderNumber string `json:"order_number"`
	Total       string `json:"total"`
	NameFirst   string `json:"name_first,omitempty"`
}

type Sender interface {
	SendOrderConfirmation(ctx context.Context, msg ConfirmationEmail) error
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func New(baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
	}
}

func (c *Client) SendOrderConfirmation(ctx context.Context, msg ConfirmationEmail) error {
	body, _ := json.Marshal(msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/emails/order-confirmation", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	default:
		return fmt.Errorf("email send error: %s", res.Status)
	}
}
