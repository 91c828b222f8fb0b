package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync"
	"weak"

	x402 "github.com/tony1908/x402Stacks"
)

// PaymentRoundTripper implements http.RoundTripper with x402 payment
// handling. On a 402 it decodes the notice, selects a compatible option,
// signs a payment, and retries the request once with the payment header
// attached.
//
// Each logical request object gets at most one payment attempt: attempts
// are tracked by request identity, so a retried request that comes back
// 402 again (expired before settlement, or rejected) fails fast instead
// of looping. Tracking keys are weak pointers, which stay distinct even
// when the allocator reuses a collected request's address, and each entry
// is dropped once its request is collected.
type PaymentRoundTripper struct {
	Transport http.RoundTripper
	Client    *x402.X402Client

	attempted sync.Map // weak.Pointer[http.Request] -> struct{}
}

// WrapHTTPClientWithPayment wraps a standard HTTP client with x402
// payment handling, allowing transparent payment on 402 responses.
func WrapHTTPClientWithPayment(client *http.Client, x402Client *x402.X402Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = &PaymentRoundTripper{
		Transport: transport,
		Client:    x402Client,
	}

	return client
}

// RoundTrip implements http.RoundTripper
func (t *PaymentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	// At most one payment attempt per request identity. A second 402 on
	// the same object means the payment was rejected or expired; signing
	// again would just pay twice.
	key := weak.Make(req)
	if _, already := t.attempted.LoadOrStore(key, struct{}{}); already {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeRequestExpired,
			Message: "payment already attempted for this request",
		}
	}
	runtime.AddCleanup(req, func(k weak.Pointer[http.Request]) {
		t.attempted.Delete(k)
	}, key)

	required, err := extractPaymentRequired(resp)
	if err != nil {
		return nil, err
	}

	if len(required.Accepts) == 0 {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: "402 notice offers no payment options",
		}
	}

	payload, err := t.Client.CreatePaymentForRequired(req.Context(), required)
	if err != nil {
		return nil, err
	}

	header, err := EncodePaymentSignatureHeader(payload)
	if err != nil {
		return nil, err
	}

	paymentReq := req.Clone(req.Context())
	paymentReq.Header.Set(HeaderPaymentSignature, header)
	paymentReq.Header.Set(HeaderPaymentAssetType, assetKindOf(payload.Accepted.Asset))

	return transport.RoundTrip(paymentReq)
}

// extractPaymentRequired reads the 402 notice, preferring the dedicated
// header over the response body.
func extractPaymentRequired(resp *http.Response) (x402.PaymentRequired, error) {
	if header := resp.Header.Get(HeaderPaymentRequired); header != "" {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return DecodePaymentRequiredHeader(header)
	}

	if resp.Body == nil {
		return x402.PaymentRequired{}, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: "402 response carries no payment information",
		}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return x402.PaymentRequired{}, &x402.PaymentError{
			Code:    x402.ErrCodeTransportFailure,
			Message: fmt.Sprintf("failed to read 402 response body: %v", err),
		}
	}

	var required x402.PaymentRequired
	if err := json.Unmarshal(body, &required); err != nil {
		return x402.PaymentRequired{}, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: fmt.Sprintf("402 body is not a payment notice: %v", err),
		}
	}

	return required, nil
}

func assetKindOf(assetID string) string {
	asset, err := x402.ParseAssetID(assetID)
	if err != nil {
		return ""
	}
	return string(asset.Kind)
}

// ============================================================================
// Convenience methods
// ============================================================================

// HTTPClient is an x402-aware HTTP client.
type HTTPClient struct {
	client *x402.X402Client
}

// NewHTTPClient creates a new HTTP-aware x402 client.
func NewHTTPClient(client *x402.X402Client) *HTTPClient {
	return &HTTPClient{client: client}
}

// Do performs an HTTP request with automatic payment handling.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	httpClient := &http.Client{
		Transport: &PaymentRoundTripper{
			Transport: http.DefaultTransport,
			Client:    c.client,
		},
	}
	return httpClient.Do(req)
}

// Get performs a GET request with automatic payment handling.
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post performs a POST request with automatic payment handling.
func (c *HTTPClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req)
}

// GetPaymentSettleResponse extracts the settlement evidence header from a
// response, if the server attached one.
func GetPaymentSettleResponse(resp *http.Response) (x402.SettleResponse, error) {
	header := resp.Header.Get(HeaderPaymentResponse)
	if header == "" {
		return x402.SettleResponse{}, fmt.Errorf("payment response header not found")
	}
	return DecodePaymentResponseHeader(header)
}
