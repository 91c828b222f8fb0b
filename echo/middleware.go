// Package echo provides an x402 payment gate for Echo resource servers.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	x402 "github.com/tony1908/x402Stacks"
	x402http "github.com/tony1908/x402Stacks/http"
)

// MiddlewareConfig configures the Echo payment gate.
type MiddlewareConfig struct {
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

	// VerifyFirst runs a stateless verify before settling (optional)
	VerifyFirst bool
}

// settlementContextKey is the echo context key holding settlement evidence.
const settlementContextKey = "x402-settlement"

// GetSettlement returns the settlement evidence for a gated request.
func GetSettlement(c echo.Context) (x402.SettleResponse, bool) {
	settlement, ok := c.Get(settlementContextKey).(x402.SettleResponse)
	return settlement, ok
}

// PaymentMiddleware returns an Echo middleware gating handlers behind an
// x402 payment. Echo streams responses, so the payment is settled before
// the handler runs and the evidence header is attached up front.
func PaymentMiddleware(config MiddlewareConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
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
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}

			resource := x402.ResourceInfo{
				URL:         c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path,
				Description: config.Description,
				MimeType:    config.MimeType,
			}

			header := c.Request().Header.Get(x402http.HeaderPaymentSignature)
			if header == "" {
				return paymentRequired(c, requirements, resource, "payment required")
			}

			payload, err := x402http.ValidateAndDecodePaymentHeader(header)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}

			if !x402.DeepEqual(payload.Accepted, requirements) {
				return paymentRequired(c, requirements, resource, "payment does not match an offered option")
			}

			ctx := c.Request().Context()

			if config.VerifyFirst {
				verify, err := config.Facilitator.Verify(ctx, payload, requirements)
				if err != nil || verify == nil || !verify.IsValid {
					reason := x402.ErrCodeTransportFailure
					if verify != nil && verify.InvalidReason != "" {
						reason = verify.InvalidReason
					}
					return paymentRequired(c, requirements, resource, "payment verification failed: "+reason)
				}
			}

			settle, err := config.Facilitator.Settle(ctx, payload, requirements)
			if err != nil || settle == nil || !settle.Success {
				reason := x402.ErrCodeTransportFailure
				if settle != nil && settle.ErrorReason != "" {
					reason = settle.ErrorReason
				}
				return paymentRequired(c, requirements, resource, "payment settlement failed: "+reason)
			}

			c.Set(settlementContextKey, *settle)

			if evidence, err := x402http.EncodePaymentResponseHeader(*settle); err == nil {
				c.Response().Header().Set(x402http.HeaderPaymentResponse, evidence)
			}

			return next(c)
		}
	}
}

func paymentRequired(c echo.Context, requirements x402.PaymentRequirements, resource x402.ResourceInfo, message string) error {
	required := x402.NewPaymentRequired([]x402.PaymentRequirements{requirements}, resource, message)
	if header, err := x402http.EncodePaymentRequiredHeader(required); err == nil {
		c.Response().Header().Set(x402http.HeaderPaymentRequired, header)
	}
	return c.JSON(http.StatusPaymentRequired, required)
}
