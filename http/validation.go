package http

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	x402 "github.com/tony1908/x402Stacks"
)

// paymentPayloadSchema is the structural contract a payment header must
// meet before the gate spends a facilitator round trip on it. Anything
// that fails here is the client's encoding bug, reported as 400 rather
// than 402.
const paymentPayloadSchema = `{
	"type": "object",
	"required": ["protocolVersion", "accepted", "payload"],
	"properties": {
		"protocolVersion": {"type": "integer", "minimum": 1},
		"accepted": {
			"type": "object",
			"required": ["scheme", "network", "amount", "asset", "payTo"],
			"properties": {
				"scheme": {"type": "string", "minLength": 1},
				"network": {"type": "string", "minLength": 1},
				"amount": {"type": "string", "pattern": "^[0-9]+$"},
				"asset": {"type": "string", "minLength": 1},
				"payTo": {"type": "string", "minLength": 1},
				"maxTimeoutSeconds": {"type": "integer", "minimum": 0},
				"extra": {"type": "object"}
			}
		},
		"payload": {"type": "object", "minProperties": 1},
		"resource": {
			"type": "object",
			"properties": {
				"url": {"type": "string"},
				"description": {"type": "string"},
				"mimeType": {"type": "string"}
			}
		}
	}
}`

var compiledPaymentPayloadSchema = gojsonschema.NewStringLoader(paymentPayloadSchema)

// ValidateAndDecodePaymentHeader decodes a payment header and validates
// its structure against the payload schema. Errors are always
// malformed_payload: the header either is not base64 JSON at all, or is
// JSON of the wrong shape. Semantic checks (signature, balance, expiry)
// stay with the facilitator.
func ValidateAndDecodePaymentHeader(header string) (x402.PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return x402.PaymentPayload{}, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: fmt.Sprintf("payment header is not valid base64: %v", err),
		}
	}

	result, err := gojsonschema.Validate(compiledPaymentPayloadSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return x402.PaymentPayload{}, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: fmt.Sprintf("payment header is not valid JSON: %v", err),
		}
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return x402.PaymentPayload{}, &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: "payment payload fails schema validation",
			Details: map[string]interface{}{
				"violations": strings.Join(problems, "; "),
			},
		}
	}

	payload, err := DecodePaymentSignatureHeader(header)
	if err != nil {
		return x402.PaymentPayload{}, err
	}

	if err := x402.ValidatePaymentPayload(payload); err != nil {
		return x402.PaymentPayload{}, err
	}

	return payload, nil
}
