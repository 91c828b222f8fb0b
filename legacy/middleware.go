package legacy

import (
	"encoding/json"
	"math/big"
	"net/http"
)

// GateConfig configures a legacy payment gate for one resource.
type GateConfig struct {
	// Details configures the 402 body generated on denial
	Details DetailsConfig

	// Facilitator verifies and settles payments
	Facilitator *FacilitatorClient

	// AcceptUnconfirmed admits payments the facilitator reports as
	// broadcast but not yet confirmed. Off by default: an unconfirmed
	// transaction can still be dropped from the mempool.
	AcceptUnconfirmed bool
}

// PaymentMiddleware wraps a handler with a legacy x402 payment gate.
//
// Two proof modes are accepted. In facilitator-settle mode the client
// sends the signed transaction in x-payment and the gate controls
// broadcast timing. In verify-only mode the client broadcast the
// transaction itself and sends only its id in x-payment-txid; the gate
// asks the facilitator whether it confirmed. Verify-only mode is the
// deprecated path and exists for old clients.
func PaymentMiddleware(config GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Facilitator == nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment gate misconfigured"})
				return
			}

			details, err := NewPaymentDetails(config.Details)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment gate misconfigured"})
				return
			}
			if details.Resource == "" {
				details.Resource = r.URL.Path
			}

			signedTx := r.Header.Get(HeaderPayment)
			txID := r.Header.Get(HeaderPaymentTxID)

			if signedTx == "" && txID == "" {
				writeJSON(w, http.StatusPaymentRequired, details)
				return
			}

			var payment *VerifiedPayment
			if signedTx != "" {
				tokenType := r.Header.Get(HeaderPaymentTokenType)
				payment, _ = config.Facilitator.Settle(r.Context(), signedTx, tokenType, details)
			} else {
				payment, _ = config.Facilitator.Verify(r.Context(), txID, details)
			}
			if payment == nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment gate misconfigured"})
				return
			}

			switch payment.Status {
			case StatusSuccess:
				// confirmed, fall through to the amount check
			case StatusPending:
				if !config.AcceptUnconfirmed {
					denyWithDetails(w, details, "payment not yet confirmed")
					return
				}
			case StatusFailed, StatusNotFound:
				reason := payment.Reason
				if reason == "" {
					reason = string(payment.Status)
				}
				denyWithDetails(w, details, "payment failed: "+reason)
				return
			default:
				denyWithDetails(w, details, "payment status unknown")
				return
			}

			if !coversAmount(payment, details) {
				denyWithDetails(w, details, "payment amount or recipient does not match")
				return
			}

			// A handler panic after a confirmed payment must not leak
			// internals to a paying client.
			defer func() {
				if rec := recover(); rec != nil {
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// coversAmount checks the observed transfer against what was asked for.
// A report without observed fields (settle responses from facilitators
// that only track status) passes; the facilitator already matched them.
func coversAmount(payment *VerifiedPayment, details PaymentDetails) bool {
	if payment.Amount == "" {
		return true
	}

	observed, ok := new(big.Int).SetString(payment.Amount, 10)
	if !ok {
		return false
	}
	required, ok := new(big.Int).SetString(details.MaxAmountRequired, 10)
	if !ok {
		return false
	}
	if observed.Cmp(required) < 0 {
		return false
	}

	if payment.Recipient != "" && payment.Recipient != details.PayTo {
		return false
	}

	return true
}

type deniedResponse struct {
	Error   string         `json:"error"`
	Details PaymentDetails `json:"details"`
}

func denyWithDetails(w http.ResponseWriter, details PaymentDetails, message string) {
	writeJSON(w, http.StatusPaymentRequired, deniedResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
