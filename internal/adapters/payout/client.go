package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type transferRequest struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type transferResponse struct {
	ID string `json:"id"`
}

// HTTPClient talks to the payments provider. Every transfer carries the
// instruction's idempotency key so a retried call never pays twice.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("payout base url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: base,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (c *HTTPClient) Transfer(ctx context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	body, err := json.Marshal(transferRequest{
		Destination: req.PayoutAccountID,
		Amount:      req.AmountCents,
		Currency:    strings.ToLower(req.Currency),
		Description: req.Description,
	})
	if err != nil {
		return ports.TransferResult{}, fmt.Errorf("%w: encode transfer: %v", domain.ErrPermanent, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return ports.TransferResult{}, fmt.Errorf("%w: build transfer request: %v", domain.ErrPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ports.TransferResult{}, fmt.Errorf("%w: transfer call: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return ports.TransferResult{}, fmt.Errorf("%w: provider returned %d", domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		return ports.TransferResult{}, fmt.Errorf("%w: provider returned %d: %s", domain.ErrPermanent, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out transferResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		return ports.TransferResult{}, fmt.Errorf("%w: malformed transfer response", domain.ErrTransient)
	}
	return ports.TransferResult{TransferID: out.ID}, nil
}
