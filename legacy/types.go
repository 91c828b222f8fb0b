// Package legacy implements the first-generation wire format of the
// payment protocol: plain JSON 402 bodies with bare network names, a
// per-attempt nonce and expiry, and x-payment request headers. New
// deployments should use the interoperable generation; this package
// exists for servers and clients that still speak the old shape.
package legacy

import (
	"time"
)

// Protocol header names for the legacy generation.
const (
	// HeaderPaymentTxID carries a raw transaction id in verify-only
	// mode, where the client broadcast the transaction itself.
	HeaderPaymentTxID = "x-payment-txid"

	// HeaderPayment carries the hex-encoded signed transaction in
	// facilitator-settle mode.
	HeaderPayment = "x-payment"

	// HeaderPaymentTokenType tags the payment with the asset kind.
	HeaderPaymentTokenType = "x-payment-token-type"
)

// MemoLength is the on-chain memo bound. Nonces longer than this are
// truncated to their fixed-length prefix.
const MemoLength = 34

// DefaultExpirationSeconds is how long a payment offer stays valid.
const DefaultExpirationSeconds = 300

// PaymentDetails is the legacy 402 body: one implicit payment option
// with a per-attempt nonce and absolute expiry.
type PaymentDetails struct {
	MaxAmountRequired string    `json:"maxAmountRequired"`
	Resource          string    `json:"resource"`
	PayTo             string    `json:"payTo"`
	Network           string    `json:"network"`
	Nonce             string    `json:"nonce"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Memo              string    `json:"memo,omitempty"`
	TokenType         string    `json:"tokenType,omitempty"`
	TokenContract     string    `json:"tokenContract,omitempty"`
}

// Expired reports whether the offer's expiry has passed.
func (d PaymentDetails) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// PaymentStatus is the legacy settlement outcome. Unlike the
// interoperable generation it distinguishes a broadcast-but-unconfirmed
// transaction from a confirmed one.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusSuccess  PaymentStatus = "success"
	StatusFailed   PaymentStatus = "failed"
	StatusNotFound PaymentStatus = "not_found"
)

// VerifiedPayment is the facilitator's report on a legacy payment: the
// confirmation status plus the amounts and principals actually observed
// on chain, which the gate checks against what it asked for.
type VerifiedPayment struct {
	Status    PaymentStatus `json:"status"`
	TxID      string        `json:"txId,omitempty"`
	Amount    string        `json:"amount,omitempty"`
	Sender    string        `json:"sender,omitempty"`
	Recipient string        `json:"recipient,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Confirmed reports whether the payment is settled on chain.
func (p VerifiedPayment) Confirmed() bool {
	return p.Status == StatusSuccess
}
