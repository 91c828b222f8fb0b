// Package x402 implements the x402 HTTP micropayment protocol for the
// Stacks blockchain: servers gate resources behind HTTP 402 responses,
// clients construct and sign transfers locally, and a trusted facilitator
// service broadcasts and confirms them.
//
// The package covers two protocol generations. The interoperable
// generation (version 2) uses CAIP-2 network identifiers and
// base64-encoded JSON headers; the legacy generation (version 1, see the
// legacy package) uses bare network names and plain JSON bodies.
package x402

// Protocol version tags carried in every wire message.
const (
	// ProtocolVersion is the current interoperable protocol generation.
	ProtocolVersion = 2

	// ProtocolVersionV1 is the legacy generation, kept for existing
	// deployments. New integrations should use ProtocolVersion.
	ProtocolVersionV1 = 1
)

// SchemeExact is the only payment scheme this SDK implements: the client
// pays exactly the amount the requirement names.
const SchemeExact = "exact"
