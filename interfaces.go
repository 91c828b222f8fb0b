package x402

import "context"

// SchemeNetworkClient is implemented by client-side payment mechanisms.
// CreatePaymentPayload returns the scheme-specific inner payload (for the
// exact scheme on Stacks, a hex-encoded signed transaction); the
// X402Client wraps it into a full PaymentPayload.
type SchemeNetworkClient interface {
	Scheme() string
	Network() Network
	CreatePaymentPayload(ctx context.Context, requirements PaymentRequirements) (map[string]interface{}, error)
}

// FacilitatorClient is the boundary to the facilitator service's two
// network calls plus its advisory capability endpoint. Implementations
// must normalize transport failures into typed results: the caller always
// receives a well-formed response object or a PaymentError, never a raw
// transport error.
type FacilitatorClient interface {
	// Verify performs a stateless payload check without broadcasting.
	Verify(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*VerifyResponse, error)

	// Settle broadcasts the signed transaction and blocks until the
	// facilitator observes confirmation, failure, or timeout.
	Settle(ctx context.Context, payload PaymentPayload, requirements PaymentRequirements) (*SettleResponse, error)

	// GetSupported advertises facilitator capabilities. Advisory only:
	// on transport failure callers must treat the result as "nothing
	// confirmed supported", never abort.
	GetSupported(ctx context.Context) (SupportedResponse, error)
}
