package x402

import (
	"context"
	"fmt"
	"sync"
)

// X402Client manages payment mechanisms and creates payment payloads.
// This is used by applications that need to make payments (have signers).
type X402Client struct {
	mu sync.RWMutex

	// network -> scheme -> client implementation
	schemes map[Network]map[string]SchemeNetworkClient
}

// ClientOption configures the client
type ClientOption func(*X402Client)

// WithScheme registers a payment mechanism at creation time
func WithScheme(client SchemeNetworkClient) ClientOption {
	return func(c *X402Client) {
		c.registerScheme(client)
	}
}

// NewClient creates a new x402 client
func NewClient(opts ...ClientOption) *X402Client {
	c := &X402Client{
		schemes: make(map[Network]map[string]SchemeNetworkClient),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterScheme registers a payment mechanism for its network
func (c *X402Client) RegisterScheme(client SchemeNetworkClient) *X402Client {
	return c.registerScheme(client)
}

func (c *X402Client) registerScheme(client SchemeNetworkClient) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	network := client.Network()
	if c.schemes[network] == nil {
		c.schemes[network] = make(map[string]SchemeNetworkClient)
	}
	c.schemes[network][client.Scheme()] = client

	return c
}

// SelectPaymentRequirements chooses exactly one requirement the client
// can fulfill. Networks must match exactly; the client never silently
// crosses networks. Zero compatible options fails with
// no_compatible_option, naming the offered networks for diagnostics.
func (c *X402Client) SelectPaymentRequirements(requirements []PaymentRequirements) (PaymentRequirements, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var offered []string
	for _, req := range requirements {
		offered = append(offered, string(req.Network))
		if schemeMap, ok := c.schemes[req.Network]; ok {
			if _, ok := schemeMap[req.Scheme]; ok {
				return req, nil
			}
		}
	}

	return PaymentRequirements{}, &PaymentError{
		Code:    ErrCodeNoCompatibleOption,
		Message: "no payment option matches a registered network and scheme",
		Details: map[string]interface{}{
			"offeredNetworks": offered,
		},
	}
}

// CreatePaymentPayload creates a signed payment payload for the selected
// requirements. The requirement is echoed into the Accepted field so the
// facilitator can verify it against what the server offered.
func (c *X402Client) CreatePaymentPayload(ctx context.Context, requirements PaymentRequirements, resource *ResourceInfo) (PaymentPayload, error) {
	if err := ValidatePaymentRequirements(requirements); err != nil {
		return PaymentPayload{}, err
	}

	c.mu.RLock()
	var client SchemeNetworkClient
	if schemeMap, ok := c.schemes[requirements.Network]; ok {
		client = schemeMap[requirements.Scheme]
	}
	c.mu.RUnlock()

	if client == nil {
		return PaymentPayload{}, &PaymentError{
			Code:    ErrCodeNoCompatibleOption,
			Message: fmt.Sprintf("no client registered for scheme %s on network %s", requirements.Scheme, requirements.Network),
		}
	}

	inner, err := client.CreatePaymentPayload(ctx, requirements)
	if err != nil {
		return PaymentPayload{}, err
	}

	payload := PaymentPayload{
		ProtocolVersion: ProtocolVersion,
		Accepted:        requirements,
		Payload:         inner,
		Resource:        resource,
	}

	if err := ValidatePaymentPayload(payload); err != nil {
		return PaymentPayload{}, err
	}

	return payload, nil
}

// CreatePaymentForRequired selects a compatible option from a 402 notice
// and creates a payment for it.
func (c *X402Client) CreatePaymentForRequired(ctx context.Context, required PaymentRequired) (PaymentPayload, error) {
	selected, err := c.SelectPaymentRequirements(required.Accepts)
	if err != nil {
		return PaymentPayload{}, err
	}

	return c.CreatePaymentPayload(ctx, selected, required.Resource)
}

// CanPay checks if the client can pay with any of the given requirements
func (c *X402Client) CanPay(requirements []PaymentRequirements) bool {
	_, err := c.SelectPaymentRequirements(requirements)
	return err == nil
}
