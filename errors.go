package x402

import "fmt"

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes. This is a closed taxonomy: every failure the SDK
// surfaces across the library boundary carries one of these codes.
const (
	ErrCodeMalformedPayload       = "malformed_payload"
	ErrCodeMalformedAsset         = "malformed_asset"
	ErrCodeUnsupportedNetwork     = "unsupported_network"
	ErrCodeUnsupportedAsset       = "unsupported_asset"
	ErrCodeMissingContractBinding = "missing_contract_binding"
	ErrCodeNoCompatibleOption     = "no_compatible_option"
	ErrCodeInvalidAmount          = "invalid_amount"
	ErrCodeMalformedRecipient     = "malformed_recipient"
	ErrCodeRequestExpired         = "request_expired"
	ErrCodeTransportFailure       = "transport_failure"
	ErrCodeFacilitatorRejected    = "facilitator_rejected"
	ErrCodeTransactionFailed      = "transaction_failed"
	ErrCodeTransactionPending     = "transaction_pending"
	ErrCodeValidationRejected     = "validation_rejected"
	ErrCodeInternalError          = "internal_error"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
	}
}

// IsRetryable reports whether err describes a transient transport failure.
// Only transport failures may be retried by callers; a facilitator that
// responds "invalid" is a definite rejection, and retrying it would risk
// paying twice.
func IsRetryable(err error) bool {
	pe, ok := err.(*PaymentError)
	return ok && pe.Code == ErrCodeTransportFailure
}

// ErrorCode extracts the taxonomy code from err, or internal_error if err
// is not a PaymentError.
func ErrorCode(err error) string {
	if pe, ok := err.(*PaymentError); ok {
		return pe.Code
	}
	return ErrCodeInternalError
}
