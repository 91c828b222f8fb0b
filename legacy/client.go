package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	x402 "github.com/tony1908/x402Stacks"
	"github.com/tony1908/x402Stacks/mechanisms/stacks"
)

// Broadcaster submits a signed transaction to the network directly,
// bypassing the facilitator. Used only by the deprecated
// client-broadcast mode.
type Broadcaster interface {
	Broadcast(ctx context.Context, signedTx string) (txID string, err error)
}

// DefaultPropagationDelay is how long client-broadcast mode waits after
// broadcasting before presenting the transaction id, so the facilitator
// can see the transaction in the mempool.
const DefaultPropagationDelay = 3 * time.Second

// Client is the legacy-generation payment negotiator. It parses plain
// JSON 402 bodies, signs a matching transfer, and retries the request
// with the payment attached.
//
// The default mode hands the signed transaction to the server, which
// controls broadcast timing through its facilitator. Client-broadcast
// mode, where the client submits the transaction itself and presents
// only its id, is deprecated and must be enabled explicitly.
type Client struct {
	network string
	signer  *stacks.ExactStacksClient

	httpClient *http.Client

	// client-broadcast mode, deprecated
	broadcaster      Broadcaster
	propagationDelay time.Duration

	now func() time.Time
}

// ClientOption configures the legacy client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientBroadcast enables the deprecated client-broadcast mode. The
// client submits the transaction itself, waits for propagation, and
// presents only the transaction id.
//
// Deprecated: the facilitator-settle default lets the server control
// broadcast timing. Use this only against servers that cannot settle.
func WithClientBroadcast(broadcaster Broadcaster, propagationDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.broadcaster = broadcaster
		if propagationDelay <= 0 {
			propagationDelay = DefaultPropagationDelay
		}
		c.propagationDelay = propagationDelay
	}
}

// NewClient creates a legacy payment client for one network.
func NewClient(network string, signer stacks.TxSigner, opts ...ClientOption) (*Client, error) {
	mechanism, err := stacks.NewExactStacksClient(network, signer)
	if err != nil {
		return nil, err
	}

	c := &Client{
		network:    network,
		signer:     mechanism,
		httpClient: &http.Client{},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ParsePaymentDetails decodes a legacy 402 body.
func ParsePaymentDetails(body []byte) (PaymentDetails, error) {
	var details PaymentDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeMalformedPayload, fmt.Sprintf("402 body is not legacy payment details: %v", err))
	}
	if details.MaxAmountRequired == "" || details.PayTo == "" || details.Network == "" {
		return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeMalformedPayload, "402 body is missing required payment fields")
	}
	return details, nil
}

// Pay signs a transfer for the given details and attaches the payment
// headers to req. Expired details are rejected before any signing.
func (c *Client) Pay(ctx context.Context, req *http.Request, details PaymentDetails) error {
	if details.Expired(c.now()) {
		return x402.NewPaymentError(x402.ErrCodeRequestExpired, "payment offer expired before signing")
	}

	if details.Network != c.network {
		return &x402.PaymentError{
			Code:    x402.ErrCodeNoCompatibleOption,
			Message: fmt.Sprintf("offer is for network %s, client pays on %s", details.Network, c.network),
		}
	}

	asset, err := detailsAsset(details)
	if err != nil {
		return err
	}

	amount, ok := new(big.Int).SetString(details.MaxAmountRequired, 10)
	if !ok || amount.Sign() < 0 {
		return x402.NewPaymentError(x402.ErrCodeInvalidAmount, "maxAmountRequired is not a non-negative integer string")
	}

	memo := details.Memo
	if memo == "" {
		memo = details.Nonce
	}

	signedTx, err := c.signer.BuildAndSign(ctx, stacks.TransferRequest{
		Network:   details.Network,
		Recipient: details.PayTo,
		Amount:    amount,
		Asset:     asset,
		Memo:      memo,
	})
	if err != nil {
		return err
	}

	if c.broadcaster != nil {
		txID, err := c.broadcaster.Broadcast(ctx, signedTx)
		if err != nil {
			return x402.NewPaymentError(x402.ErrCodeTransportFailure, fmt.Sprintf("broadcast failed: %v", err))
		}
		// Give the transaction time to propagate before the server's
		// facilitator looks it up.
		select {
		case <-time.After(c.propagationDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		req.Header.Set(HeaderPaymentTxID, txID)
		return nil
	}

	req.Header.Set(HeaderPayment, signedTx)
	if details.TokenType != "" {
		req.Header.Set(HeaderPaymentTokenType, details.TokenType)
	}
	return nil
}

// Do performs a request, paying once if the server answers 402. A second
// 402 after payment is returned as-is; decode and signing errors are
// never retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeTransportFailure, fmt.Sprintf("failed to read 402 body: %v", err))
	}

	details, err := ParsePaymentDetails(body)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		retry.Body, err = req.GetBody()
		if err != nil {
			return nil, err
		}
	}

	if err := c.Pay(req.Context(), retry, details); err != nil {
		return nil, err
	}

	return c.httpClient.Do(retry)
}

// detailsAsset maps the legacy tokenType/tokenContract pair onto an
// asset. A token type without a resolvable contract is the server's
// configuration bug, reported as such.
func detailsAsset(details PaymentDetails) (x402.Asset, error) {
	if details.TokenType == "" || details.TokenType == string(x402.AssetKindNative) {
		return x402.Asset{Kind: x402.AssetKindNative}, nil
	}

	if details.TokenType != string(x402.AssetKindFungibleToken) {
		return x402.Asset{}, x402.NewPaymentError(x402.ErrCodeUnsupportedAsset, "unknown token type "+details.TokenType)
	}

	if details.TokenContract != "" {
		parts := strings.SplitN(details.TokenContract, ".", 2)
		if len(parts) != 2 || !x402.ValidAddress(parts[0]) || parts[1] == "" {
			return x402.Asset{}, x402.NewPaymentError(x402.ErrCodeMalformedAsset, "tokenContract is not issuer.name")
		}
		return x402.Asset{
			Kind:     x402.AssetKindFungibleToken,
			Contract: &x402.ContractRef{Issuer: parts[0], Name: parts[1]},
		}, nil
	}

	contract, ok := x402.DefaultContract(x402.AssetKindFungibleToken, details.Network)
	if !ok {
		return x402.Asset{}, x402.NewPaymentError(x402.ErrCodeMissingContractBinding, "no contract configured for token on "+details.Network)
	}
	return x402.Asset{Kind: x402.AssetKindFungibleToken, Contract: &contract}, nil
}
