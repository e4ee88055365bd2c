package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CardGateway checks the status of a card payment by reference with
// the card processor's query API.
type CardGateway interface {
	CheckPayment(ctx context.Context, reference string) (status string, raw map[string]any, err error)
}

type HTTPCardGateway struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
}

func NewHTTPCardGateway(baseURL, apiKey string) *HTTPCardGateway {
	return &HTTPCardGateway{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

func (g *HTTPCardGateway) CheckPayment(ctx context.Context, reference string) (string, map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/payments/%s", g.BaseURL, reference), nil)
	if err != nil {
		return "", nil, err
	}
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}
	res, err := g.HTTP.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil, fmt.Errorf("payment %s not found at gateway", reference)
	default:
		return "", nil, fmt.Errorf("gateway status check error: %s", res.Status)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", nil, err
	}
	status, _ := body["status"].(string)
	return status, body, nil
}
