// Package http provides the HTTP transport for the x402 protocol:
// a payment-aware client round-tripper, the remote facilitator client,
// and payment gate middleware for net/http handlers.
package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/tony1908/x402Stacks"
)

// Protocol header names for the interoperable generation.
const (
	// HeaderPaymentRequired carries the base64-JSON 402 notice. It is
	// the canonical transport; the response body duplicates it for
	// clients that only read bodies.
	HeaderPaymentRequired = "Payment-Required"

	// HeaderPaymentSignature carries the client's base64-JSON payment
	// payload on the retried request.
	HeaderPaymentSignature = "Payment-Signature"

	// HeaderPaymentResponse carries the base64-JSON settlement evidence
	// on the admitted response.
	HeaderPaymentResponse = "Payment-Response"

	// HeaderPaymentAssetType tags the retried request with the chosen
	// asset's kind so the server need not re-derive it.
	HeaderPaymentAssetType = "Payment-Asset-Type"
)

// EncodePaymentRequiredHeader encodes a 402 notice as base64 JSON.
func EncodePaymentRequiredHeader(required x402.PaymentRequired) (string, error) {
	return encodeBase64JSON(required)
}

// DecodePaymentRequiredHeader decodes a base64 payment required header
func DecodePaymentRequiredHeader(header string) (x402.PaymentRequired, error) {
	var required x402.PaymentRequired
	if err := decodeBase64JSON(header, &required); err != nil {
		return x402.PaymentRequired{}, err
	}
	return required, nil
}

// EncodePaymentSignatureHeader encodes a payment payload as base64 JSON.
func EncodePaymentSignatureHeader(payload x402.PaymentPayload) (string, error) {
	return encodeBase64JSON(payload)
}

// DecodePaymentSignatureHeader decodes a base64 payment signature header
func DecodePaymentSignatureHeader(header string) (x402.PaymentPayload, error) {
	var payload x402.PaymentPayload
	if err := decodeBase64JSON(header, &payload); err != nil {
		return x402.PaymentPayload{}, err
	}
	return payload, nil
}

// EncodePaymentResponseHeader encodes a settlement response as base64 JSON.
func EncodePaymentResponseHeader(response x402.SettleResponse) (string, error) {
	return encodeBase64JSON(response)
}

// DecodePaymentResponseHeader decodes a base64 payment response header
func DecodePaymentResponseHeader(header string) (x402.SettleResponse, error) {
	var response x402.SettleResponse
	if err := decodeBase64JSON(header, &response); err != nil {
		return x402.SettleResponse{}, err
	}
	return response, nil
}

func encodeBase64JSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeBase64JSON(header string, v interface{}) error {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: fmt.Sprintf("invalid base64 encoding: %v", err),
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &x402.PaymentError{
			Code:    x402.ErrCodeMalformedPayload,
			Message: fmt.Sprintf("invalid header JSON: %v", err),
		}
	}
	return nil
}
