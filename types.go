package x402

import "encoding/json"

// Network represents a blockchain network identifier in CAIP-2 format.
// Format: namespace:reference (e.g., "stacks:1" for Stacks mainnet).
type Network string

// PaymentRequirements defines one acceptable way to pay for a resource.
// Amount is the smallest indivisible unit of the asset, rendered as a
// decimal string so arbitrary precision survives JSON. Immutable once
// constructed.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	Amount            string                 `json:"amount"`
	Asset             string                 `json:"asset"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// ResourceInfo describes the resource being accessed
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the 402 response sent to clients. The Accepts list
// carries the server's acceptable options; order does not imply
// preference, clients must filter by compatibility.
type PaymentRequired struct {
	ProtocolVersion int                   `json:"protocolVersion"`
	Error           string                `json:"error,omitempty"`
	Resource        *ResourceInfo         `json:"resource,omitempty"`
	Accepts         []PaymentRequirements `json:"accepts"`
}

// PaymentPayload contains the signed payment from a client. Accepted
// echoes the requirement the client chose; it must be bit-identical to
// one the server actually offered or settlement is rejected.
type PaymentPayload struct {
	ProtocolVersion int                    `json:"protocolVersion"`
	Accepted        PaymentRequirements    `json:"accepted"`
	Payload         map[string]interface{} `json:"payload"`
	Resource        *ResourceInfo          `json:"resource,omitempty"`
}

// Transaction returns the hex-encoded signed transaction carried in the
// payload, or "" if absent.
func (p PaymentPayload) Transaction() string {
	if tx, ok := p.Payload["transaction"].(string); ok {
		return tx
	}
	return ""
}

// VerifyResponse contains the result of a stateless facilitator check
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse contains the settlement result. Transport failures are
// mapped onto ErrorReason by the facilitator client; Success is never
// fabricated on a transport error.
type SettleResponse struct {
	Success     bool    `json:"success"`
	ErrorReason string  `json:"errorReason,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	Transaction string  `json:"transaction"`
	Network     Network `json:"network"`
}

// SupportedKind represents a single supported payment configuration
type SupportedKind struct {
	ProtocolVersion int                    `json:"protocolVersion"`
	Scheme          string                 `json:"scheme"`
	Network         Network                `json:"network"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse describes what payment kinds a facilitator supports
type SupportedResponse struct {
	Kinds      []SupportedKind `json:"kinds"`
	Extensions []string        `json:"extensions"`
	Signers    []string        `json:"signers"`
}

// VerifyRequest is the body posted to the facilitator's verify endpoint
type VerifyRequest struct {
	ProtocolVersion     int                 `json:"protocolVersion"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest is the body posted to the facilitator's settle endpoint
type SettleRequest struct {
	ProtocolVersion     int                 `json:"protocolVersion"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// DeepEqual performs deep equality check on payment requirements.
// Values are normalized through JSON so map ordering and numeric
// representation do not affect the comparison. This is the anti-tamper
// check: the requirement a client echoes back must deep-equal one the
// server offered.
func DeepEqual(a, b interface{}) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aNorm, bNorm interface{}
	if err := json.Unmarshal(aJSON, &aNorm); err != nil {
		return false
	}
	if err := json.Unmarshal(bJSON, &bNorm); err != nil {
		return false
	}

	aNormJSON, _ := json.Marshal(aNorm)
	bNormJSON, _ := json.Marshal(bNorm)

	return string(aNormJSON) == string(bNormJSON)
}
