package x402

import (
	"fmt"
	"math/big"
)

// ValidatePaymentPayload performs basic validation on a payment payload
func ValidatePaymentPayload(p PaymentPayload) error {
	if p.ProtocolVersion != ProtocolVersion && p.ProtocolVersion != ProtocolVersionV1 {
		return &PaymentError{
			Code:    ErrCodeMalformedPayload,
			Message: fmt.Sprintf("unsupported protocol version: %d", p.ProtocolVersion),
		}
	}
	if p.Payload == nil {
		return &PaymentError{Code: ErrCodeMalformedPayload, Message: "payment payload is required"}
	}
	return ValidatePaymentRequirements(p.Accepted)
}

// ValidatePaymentRequirements performs basic validation on payment requirements
func ValidatePaymentRequirements(r PaymentRequirements) error {
	if r.Scheme == "" {
		return &PaymentError{Code: ErrCodeMalformedPayload, Message: "payment scheme is required"}
	}
	if r.Network == "" {
		return &PaymentError{Code: ErrCodeMalformedPayload, Message: "payment network is required"}
	}
	if r.Asset == "" {
		return &PaymentError{Code: ErrCodeMalformedPayload, Message: "payment asset is required"}
	}
	if r.PayTo == "" {
		return &PaymentError{Code: ErrCodeMalformedRecipient, Message: "payment recipient is required"}
	}
	if amount, ok := new(big.Int).SetString(r.Amount, 10); !ok || amount.Sign() < 0 {
		return &PaymentError{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("amount must be a non-negative integer, got %q", r.Amount),
		}
	}
	return nil
}
