// Package gin provides an x402 payment gate for Gin resource servers.
package gin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	x402 "github.com/tony1908/x402Stacks"
	x402http "github.com/tony1908/x402Stacks/http"
)

// PaymentMiddlewareOptions is the options for the PaymentMiddleware.
type PaymentMiddlewareOptions struct {
	Network           string
	Asset             x402.Asset
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
	Facilitator       x402.FacilitatorClient
	VerifyFirst       bool
	CustomPaywallHTML string
	ResourceRootURL   string
}

// Options is the type for the options for the PaymentMiddleware.
type Options func(*PaymentMiddlewareOptions)

// WithNetwork is an option for the PaymentMiddleware to set the network explicitly.
func WithNetwork(network string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Network = network
	}
}

// WithAsset is an option for the PaymentMiddleware to charge in a token
// instead of the native coin.
func WithAsset(asset x402.Asset) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Asset = asset
	}
}

// WithDescription is an option for the PaymentMiddleware to set the description.
func WithDescription(description string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Description = description
	}
}

// WithMimeType is an option for the PaymentMiddleware to set the mime type.
func WithMimeType(mimeType string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.MimeType = mimeType
	}
}

// WithMaxTimeoutSeconds is an option for the PaymentMiddleware to set the max timeout seconds.
func WithMaxTimeoutSeconds(maxTimeoutSeconds int) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.MaxTimeoutSeconds = maxTimeoutSeconds
	}
}

// WithFacilitator is an option for the PaymentMiddleware to set the facilitator client.
func WithFacilitator(facilitator x402.FacilitatorClient) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.Facilitator = facilitator
	}
}

// WithVerifyFirst is an option for the PaymentMiddleware to verify
// payments before the handler runs rather than only settling after it.
func WithVerifyFirst() Options {
	return func(options *PaymentMiddlewareOptions) {
		options.VerifyFirst = true
	}
}

// WithCustomPaywallHTML is an option for the PaymentMiddleware to set the custom paywall HTML.
func WithCustomPaywallHTML(customPaywallHTML string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.CustomPaywallHTML = customPaywallHTML
	}
}

// WithResourceRootURL is an option for the PaymentMiddleware to set the
// public base URL used in 402 notices.
func WithResourceRootURL(resourceRootURL string) Options {
	return func(options *PaymentMiddlewareOptions) {
		options.ResourceRootURL = resourceRootURL
	}
}

// settlementKey is the gin context key holding settlement evidence.
const settlementKey = "x402-settlement"

// GetSettlement returns the settlement evidence for a gated request.
func GetSettlement(c *gin.Context) (x402.SettleResponse, bool) {
	value, ok := c.Get(settlementKey)
	if !ok {
		return x402.SettleResponse{}, false
	}
	settlement, ok := value.(x402.SettleResponse)
	return settlement, ok
}

// PaymentMiddleware is the Gin middleware for x402 resource servers.
// Amount is the price in base units as a decimal string.
//
// Settlement happens after the handler succeeds: the response is
// captured, the payment is settled, and only then is the body released
// with the settlement evidence header attached. An aborted handler never
// charges the client.
func PaymentMiddleware(amount string, payTo string, opts ...Options) gin.HandlerFunc {
	options := &PaymentMiddlewareOptions{
		Network:           x402.NetworkTestnet,
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
	}

	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		requirements, err := x402.BuildPaymentRequirements(x402.ResourceConfig{
			Amount:            amount,
			PayTo:             payTo,
			Network:           options.Network,
			Asset:             options.Asset,
			Description:       options.Description,
			MimeType:          options.MimeType,
			MaxTimeoutSeconds: options.MaxTimeoutSeconds,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}

		resource := x402.ResourceInfo{
			URL:         options.ResourceRootURL + c.Request.URL.Path,
			Description: options.Description,
			MimeType:    options.MimeType,
		}

		userAgent := c.GetHeader("User-Agent")
		acceptHeader := c.GetHeader("Accept")
		isWebBrowser := strings.Contains(acceptHeader, "text/html") && strings.Contains(userAgent, "Mozilla")

		payment := c.GetHeader(x402http.HeaderPaymentSignature)
		if payment == "" {
			if isWebBrowser {
				html := options.CustomPaywallHTML
				if html == "" {
					html = defaultPaywallHTML
				}
				c.Abort()
				c.Data(http.StatusPaymentRequired, "text/html", []byte(html))
				return
			}
			abortPaymentRequired(c, requirements, resource, "payment required")
			return
		}

		payload, err := x402http.ValidateAndDecodePaymentHeader(payment)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}

		if !x402.DeepEqual(payload.Accepted, requirements) {
			abortPaymentRequired(c, requirements, resource, "payment does not match an offered option")
			return
		}

		if options.VerifyFirst {
			verify, err := options.Facilitator.Verify(c.Request.Context(), payload, requirements)
			if err != nil || verify == nil || !verify.IsValid {
				reason := x402.ErrCodeTransportFailure
				if verify != nil && verify.InvalidReason != "" {
					reason = verify.InvalidReason
				}
				fmt.Println("Invalid payment:", reason)
				abortPaymentRequired(c, requirements, resource, "payment verification failed: "+reason)
				return
			}
		}

		// Capture the response so nothing reaches the client before
		// settlement succeeds.
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &strings.Builder{},
			statusCode:     http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		if c.IsAborted() {
			c.Writer = writer.ResponseWriter
			return
		}

		settle, err := options.Facilitator.Settle(c.Request.Context(), payload, requirements)
		if err != nil || settle == nil || !settle.Success {
			reason := x402.ErrCodeTransportFailure
			if settle != nil && settle.ErrorReason != "" {
				reason = settle.ErrorReason
			}
			fmt.Println("Settlement failed:", reason)
			c.Writer = writer.ResponseWriter
			abortPaymentRequired(c, requirements, resource, "payment settlement failed: "+reason)
			return
		}

		c.Set(settlementKey, *settle)

		evidence, err := x402http.EncodePaymentResponseHeader(*settle)
		if err != nil {
			c.Writer = writer.ResponseWriter
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Header(x402http.HeaderPaymentResponse, evidence)
		c.Writer = writer.ResponseWriter
		c.Writer.WriteHeader(writer.statusCode)
		c.Writer.Write([]byte(writer.body.String()))
	}
}

func abortPaymentRequired(c *gin.Context, requirements x402.PaymentRequirements, resource x402.ResourceInfo, message string) {
	required := x402.NewPaymentRequired([]x402.PaymentRequirements{requirements}, resource, message)
	if header, err := x402http.EncodePaymentRequiredHeader(required); err == nil {
		c.Header(x402http.HeaderPaymentRequired, header)
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, required)
}

// responseWriter is a custom response writer that captures the response
type responseWriter struct {
	gin.ResponseWriter
	body       *strings.Builder
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return len(b), nil
}

func (w *responseWriter) WriteString(s string) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.WriteString(s)
}

const defaultPaywallHTML = `<html>
<head><title>Payment Required</title></head>
<body>
<h1>Payment Required</h1>
<p>This resource requires an x402 payment. Retry the request with a payment client.</p>
</body>
</html>`
