package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/tony1908/x402Stacks"
)

// Legacy facilitator endpoints.
const (
	verifyPath = "/api/v1/verify"
	settlePath = "/api/v1/settle"
)

// FacilitatorConfig configures the legacy facilitator client.
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout bounds each call (optional, default 30s)
	Timeout time.Duration
}

// FacilitatorClient talks to a legacy facilitator. Verify looks up a
// transaction the client already broadcast; Settle broadcasts a signed
// transaction and waits for confirmation.
type FacilitatorClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
}

// NewFacilitatorClient creates a legacy facilitator client.
func NewFacilitatorClient(config *FacilitatorConfig) *FacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &FacilitatorClient{
		url:        config.URL,
		httpClient: httpClient,
		timeout:    timeout,
	}
}

type verifyRequest struct {
	TxID    string         `json:"txId"`
	Details PaymentDetails `json:"details"`
}

type settleRequest struct {
	Transaction string         `json:"transaction"`
	TokenType   string         `json:"tokenType,omitempty"`
	Details     PaymentDetails `json:"details"`
}

// Verify looks up an already-broadcast transaction by id and reports its
// confirmation status against the payment details.
func (c *FacilitatorClient) Verify(ctx context.Context, txID string, details PaymentDetails) (*VerifiedPayment, error) {
	return c.call(ctx, verifyPath, verifyRequest{TxID: txID, Details: details})
}

// Settle broadcasts a signed transaction and blocks until the
// facilitator observes confirmation, failure, or timeout.
func (c *FacilitatorClient) Settle(ctx context.Context, signedTx string, tokenType string, details PaymentDetails) (*VerifiedPayment, error) {
	return c.call(ctx, settlePath, settleRequest{Transaction: signedTx, TokenType: tokenType, Details: details})
}

// call posts a JSON body and decodes the verified payment report.
// Transport failures come back as a typed failure report plus an error,
// so gates always have a status to act on.
func (c *FacilitatorClient) call(ctx context.Context, path string, payload interface{}) (*VerifiedPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return transportFailure(), x402.NewPaymentError(x402.ErrCodeInternalError, fmt.Sprintf("failed to marshal %s request: %v", path, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return transportFailure(), x402.NewPaymentError(x402.ErrCodeInternalError, fmt.Sprintf("failed to create %s request: %v", path, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(), x402.NewPaymentError(x402.ErrCodeTransportFailure, fmt.Sprintf("%s request failed: %v", path, err))
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(), x402.NewPaymentError(x402.ErrCodeTransportFailure, fmt.Sprintf("failed to read %s response: %v", path, err))
	}

	var payment VerifiedPayment
	if err := json.Unmarshal(responseBody, &payment); err != nil {
		return transportFailure(), x402.NewPaymentError(x402.ErrCodeTransportFailure, fmt.Sprintf("%s returned an unreadable body (%d): %v", path, resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK && payment.Status == "" {
		payment.Status = StatusFailed
		payment.Reason = x402.ErrCodeFacilitatorRejected
	}

	return &payment, nil
}

func transportFailure() *VerifiedPayment {
	return &VerifiedPayment{
		Status: StatusFailed,
		Reason: x402.ErrCodeTransportFailure,
	}
}
