package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	x402 "github.com/tony1908/x402Stacks"
)

// PaymentValidator is an application hook that runs after the
// facilitator accepts a payment but before the resource is served. A
// non-nil error rejects the request with a fresh 402.
type PaymentValidator func(r *http.Request, payload x402.PaymentPayload) error

// GateConfig configures a payment gate for one resource.
type GateConfig struct {
	// Amount is the price in base units as a decimal string
	Amount string

	// PayTo is the recipient address
	PayTo string

	// Network selects mainnet or testnet
	Network string

	// Asset selects the settlement asset (native by default)
	Asset x402.Asset

	// Description describes the resource in the 402 notice (optional)
	Description string

	// MimeType is the content type of the gated resource (optional)
	MimeType string

	// MaxTimeoutSeconds bounds payment validity (optional, default 300)
	MaxTimeoutSeconds int

	// Facilitator verifies and settles payments
	Facilitator x402.FacilitatorClient

	// VerifyFirst runs a stateless verify before settling, trading one
	// extra round trip for rejecting bad payments without a broadcast
	// attempt (optional)
	VerifyFirst bool

	// Validator runs after settlement verification (optional)
	Validator PaymentValidator
}

// PaymentMiddleware wraps a handler with an x402 payment gate. Requests
// without a payment header get a 402 notice; requests with one are
// settled through the facilitator before the handler runs.
//
// The notice travels in both the Payment-Required header and the JSON
// body, so header-only and body-only clients see the same offer.
func PaymentMiddleware(config GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requirements, err := x402.BuildPaymentRequirements(x402.ResourceConfig{
				Amount:            config.Amount,
				PayTo:             config.PayTo,
				Network:           config.Network,
				Asset:             config.Asset,
				Description:       config.Description,
				MimeType:          config.MimeType,
				MaxTimeoutSeconds: config.MaxTimeoutSeconds,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "payment gate misconfigured")
				return
			}

			resource := x402.ResourceInfo{
				URL:         requestURL(r),
				Description: config.Description,
				MimeType:    config.MimeType,
			}

			header := r.Header.Get(HeaderPaymentSignature)
			if header == "" {
				writePaymentRequired(w, requirements, resource, "payment required")
				return
			}

			payload, err := ValidateAndDecodePaymentHeader(header)
			if err != nil {
				// A header that cannot be decoded is the client's bug,
				// not a payment negotiation state.
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			// The echoed requirement must be exactly one the server
			// offered. Anything else is tampering or staleness, and the
			// client gets a fresh offer.
			if !x402.DeepEqual(payload.Accepted, requirements) {
				writePaymentRequired(w, requirements, resource, "payment does not match an offered option")
				return
			}

			ctx := r.Context()

			if config.VerifyFirst {
				verify, err := config.Facilitator.Verify(ctx, payload, requirements)
				if err != nil || verify == nil || !verify.IsValid {
					reason := x402.ErrCodeTransportFailure
					if verify != nil && verify.InvalidReason != "" {
						reason = verify.InvalidReason
					}
					writePaymentRequired(w, requirements, resource, "payment verification failed: "+reason)
					return
				}
			}

			settle, err := config.Facilitator.Settle(ctx, payload, requirements)
			if err != nil || settle == nil || !settle.Success {
				reason := x402.ErrCodeTransportFailure
				if settle != nil && settle.ErrorReason != "" {
					reason = settle.ErrorReason
				}
				writePaymentRequired(w, requirements, resource, "payment settlement failed: "+reason)
				return
			}

			if config.Validator != nil {
				if err := config.Validator(r, payload); err != nil {
					writePaymentRequired(w, requirements, resource, "payment rejected: "+err.Error())
					return
				}
			}

			evidence, err := EncodePaymentResponseHeader(*settle)
			if err == nil {
				w.Header().Set(HeaderPaymentResponse, evidence)
			}

			// A handler panic after settlement must not leak internals to
			// a paying client.
			defer func() {
				if rec := recover(); rec != nil {
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r.WithContext(NewContextWithSettlement(ctx, *settle)))
		})
	}
}

// writePaymentRequired sends a 402 notice in both the header and body.
func writePaymentRequired(w http.ResponseWriter, requirements x402.PaymentRequirements, resource x402.ResourceInfo, message string) {
	required := x402.NewPaymentRequired([]x402.PaymentRequirements{requirements}, resource, message)

	if header, err := EncodePaymentRequiredHeader(required); err == nil {
		w.Header().Set(HeaderPaymentRequired, header)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(required)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

// ============================================================================
// Settlement evidence context
// ============================================================================

type contextKey string

const settlementContextKey contextKey = "x402-settlement"

// NewContextWithSettlement attaches settlement evidence to a context so
// gated handlers can read the payer and transaction ID.
func NewContextWithSettlement(ctx context.Context, settlement x402.SettleResponse) context.Context {
	return context.WithValue(ctx, settlementContextKey, settlement)
}

// SettlementFromContext returns the settlement evidence attached by the
// payment gate, if the request passed through one.
func SettlementFromContext(ctx context.Context) (x402.SettleResponse, bool) {
	settlement, ok := ctx.Value(settlementContextKey).(x402.SettleResponse)
	return settlement, ok
}

// ============================================================================
// Gate wrappers
// ============================================================================

// ConditionalMiddleware applies the payment gate only to requests the
// predicate selects; everything else passes straight through.
func ConditionalMiddleware(config GateConfig, predicate func(r *http.Request) bool) func(http.Handler) http.Handler {
	gate := PaymentMiddleware(config)
	return func(next http.Handler) http.Handler {
		gated := gate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if predicate(r) {
				gated.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Tier prices one class of requests. The first tier whose Match returns
// true wins.
type Tier struct {
	Match  func(r *http.Request) bool
	Config GateConfig
}

// TieredMiddleware routes each request to the gate of its matching tier.
// Requests matching no tier pass through ungated.
func TieredMiddleware(tiers []Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gated := make([]http.Handler, len(tiers))
		for i, tier := range tiers {
			gated[i] = PaymentMiddleware(tier.Config)(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i, tier := range tiers {
				if tier.Match(r) {
					gated[i].ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig configures a free tier in front of a payment gate.
type RateLimitConfig struct {
	// FreeRequests is how many requests per window pass without payment
	FreeRequests int

	// Window is the rolling window length (default one hour)
	Window time.Duration

	// Store counts requests per client (default in-memory)
	Store RateLimitStore

	// KeyFunc derives the client key (default: remote IP)
	KeyFunc func(r *http.Request) string
}

// RateLimitedMiddleware lets each client make FreeRequests requests per
// window for free, then gates the rest behind payment. The count and the
// admission decision are a single atomic store operation, so concurrent
// requests at the boundary cannot both ride free.
func RateLimitedMiddleware(config GateConfig, limit RateLimitConfig) func(http.Handler) http.Handler {
	if limit.Window == 0 {
		limit.Window = time.Hour
	}
	if limit.Store == nil {
		limit.Store = NewMemoryRateLimitStore()
	}
	if limit.KeyFunc == nil {
		limit.KeyFunc = clientIP
	}

	gate := PaymentMiddleware(config)
	return func(next http.Handler) http.Handler {
		gated := gate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, _ := limit.Store.Increment(limit.KeyFunc(r), limit.Window)
			if count <= limit.FreeRequests {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
