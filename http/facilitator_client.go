package http

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

// Facilitator call timeouts. Settlement waits for chain confirmation and
// is inherently slower than the stateless verify check.
const (
	DefaultVerifyTimeout = 15 * time.Second
	DefaultSettleTimeout = 30 * time.Second
)

// FacilitatorConfig configures the HTTP facilitator client
type FacilitatorConfig struct {
	// URL is the base URL of the facilitator service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// VerifyTimeout bounds the verify call (optional)
	VerifyTimeout time.Duration

	// SettleTimeout bounds the settle call (optional)
	SettleTimeout time.Duration
}

// HTTPFacilitatorClient communicates with a remote facilitator service
// over plain JSON HTTP. It implements x402.FacilitatorClient.
//
// Transport-level failures (connection refused, timeout, unreadable
// bodies) are normalized into typed results with a transport_failure
// reason; the gate always receives a well-formed result object to decide
// on, never a raw transport error.
type HTTPFacilitatorClient struct {
	url           string
	httpClient    *http.Client
	verifyTimeout time.Duration
	settleTimeout time.Duration
}

// NewHTTPFacilitatorClient creates a new HTTP facilitator client
func NewHTTPFacilitatorClient(config *FacilitatorConfig) *HTTPFacilitatorClient {
	if config == nil {
		config = &FacilitatorConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	verifyTimeout := config.VerifyTimeout
	if verifyTimeout == 0 {
		verifyTimeout = DefaultVerifyTimeout
	}
	settleTimeout := config.SettleTimeout
	if settleTimeout == 0 {
		settleTimeout = DefaultSettleTimeout
	}

	return &HTTPFacilitatorClient{
		url:           config.URL,
		httpClient:    httpClient,
		verifyTimeout: verifyTimeout,
		settleTimeout: settleTimeout,
	}
}

// Verify checks payment validity without broadcasting. A facilitator that
// responds "invalid" is a definite rejection, reported through the
// result, not an error; only transport failures return a non-nil error
// (always alongside a well-formed failure result).
func (c *HTTPFacilitatorClient) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	body, status, err := c.post(ctx, "/verify", x402.VerifyRequest{
		ProtocolVersion:     x402.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return &x402.VerifyResponse{
			IsValid:       false,
			InvalidReason: x402.ErrCodeTransportFailure,
		}, err
	}

	var verifyResponse x402.VerifyResponse
	if err := json.Unmarshal(body, &verifyResponse); err != nil {
		return &x402.VerifyResponse{
				IsValid:       false,
				InvalidReason: x402.ErrCodeTransportFailure,
			}, &x402.PaymentError{
				Code:    x402.ErrCodeTransportFailure,
				Message: fmt.Sprintf("facilitator verify returned an unreadable body (%d): %v", status, err),
			}
	}

	if status != http.StatusOK && verifyResponse.InvalidReason == "" {
		verifyResponse.IsValid = false
		verifyResponse.InvalidReason = x402.ErrCodeFacilitatorRejected
	}

	return &verifyResponse, nil
}

// Settle broadcasts the signed transaction and blocks until the
// facilitator observes confirmation, failure, or timeout. The result is
// never fabricated: a transport failure maps to a failure reason, never
// to success.
func (c *HTTPFacilitatorClient) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settleTimeout)
	defer cancel()

	body, status, err := c.post(ctx, "/settle", x402.SettleRequest{
		ProtocolVersion:     x402.ProtocolVersion,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	})
	if err != nil {
		return &x402.SettleResponse{
			Success:     false,
			ErrorReason: x402.ErrCodeTransportFailure,
			Network:     requirements.Network,
		}, err
	}

	var settleResponse x402.SettleResponse
	if err := json.Unmarshal(body, &settleResponse); err != nil {
		return &x402.SettleResponse{
				Success:     false,
				ErrorReason: x402.ErrCodeTransportFailure,
				Network:     requirements.Network,
			}, &x402.PaymentError{
				Code:    x402.ErrCodeTransportFailure,
				Message: fmt.Sprintf("facilitator settle returned an unreadable body (%d): %v", status, err),
			}
	}

	if status != http.StatusOK && settleResponse.ErrorReason == "" {
		settleResponse.Success = false
		settleResponse.ErrorReason = x402.ErrCodeFacilitatorRejected
	}

	return &settleResponse, nil
}

// GetSupported gets supported payment kinds. The call is advisory only:
// use GetSupportedOrEmpty when a transport failure should degrade to
// "nothing confirmed supported".
func (c *HTTPFacilitatorClient) GetSupported(ctx context.Context) (x402.SupportedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/supported", nil)
	if err != nil {
		return x402.SupportedResponse{}, fmt.Errorf("failed to create supported request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return x402.SupportedResponse{}, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("supported request failed: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return x402.SupportedResponse{}, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("failed to read supported response: %v", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return x402.SupportedResponse{}, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("facilitator supported failed (%d): %s", resp.StatusCode, string(body)),
		}
	}

	var supported x402.SupportedResponse
	if err := json.Unmarshal(body, &supported); err != nil {
		return x402.SupportedResponse{}, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("failed to decode supported response: %v", err),
		}
	}

	return supported, nil
}

// GetSupportedOrEmpty returns the facilitator's capabilities, degrading
// to empty sets on any failure. Capability advertisement is advisory;
// callers must never abort on it.
func GetSupportedOrEmpty(ctx context.Context, client x402.FacilitatorClient) x402.SupportedResponse {
	supported, err := client.GetSupported(ctx)
	if err != nil {
		return x402.SupportedResponse{}
	}
	return supported
}

// post sends a JSON body and returns the raw response body and status.
// Any failure before a body is read is a transport failure.
func (c *HTTPFacilitatorClient) post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, &x402.PaymentError{
			Code:    x402.ErrCodeInternalError,
			Message: fmt.Sprintf("failed to marshal %s request: %v", path, err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, &x402.PaymentError{
			Code:    x402.ErrCodeInternalError,
			Message: fmt.Sprintf("failed to create %s request: %v", path, err),
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("%s request failed: %v", path, err),
		}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("failed to read %s response: %v", path, err),
		}
	}

	return responseBody, resp.StatusCode, nil
}
