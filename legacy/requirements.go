package legacy

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	x402 "github.com/tony1908/x402Stacks"
)

// DetailsConfig configures legacy payment details for one resource.
type DetailsConfig struct {
	// Amount is the price in base units as a decimal string
	Amount string

	// PayTo is the recipient address
	PayTo string

	// Network is the bare network name, mainnet or testnet
	Network string

	// Resource identifies the gated resource in the 402 body
	Resource string

	// Asset selects the settlement asset (native by default)
	Asset x402.Asset

	// ExpirationSeconds overrides the default offer lifetime (optional)
	ExpirationSeconds int
}

// NewPaymentDetails builds a fresh legacy 402 body. The nonce and expiry
// are per-attempt: every call produces a new nonce and a new absolute
// deadline, never a cached one.
func NewPaymentDetails(config DetailsConfig) (PaymentDetails, error) {
	amount, ok := new(big.Int).SetString(config.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeInvalidAmount, "amount must be a non-negative integer string")
	}

	if !x402.ValidAddress(config.PayTo) {
		return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeMalformedRecipient, "payTo is not a valid address")
	}

	if config.Network != x402.NetworkMainnet && config.Network != x402.NetworkTestnet {
		return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeUnsupportedNetwork, "network must be mainnet or testnet")
	}

	details := PaymentDetails{
		MaxAmountRequired: amount.String(),
		Resource:          config.Resource,
		PayTo:             config.PayTo,
		Network:           config.Network,
		Nonce:             newNonce(),
		ExpiresAt:         time.Now().Add(expiration(config.ExpirationSeconds)),
	}
	details.Memo = details.Nonce

	if config.Asset.Kind == x402.AssetKindFungibleToken {
		details.TokenType = string(x402.AssetKindFungibleToken)
		contract := config.Asset.Contract
		if contract == nil {
			defaultContract, ok := x402.DefaultContract(x402.AssetKindFungibleToken, config.Network)
			if !ok {
				return PaymentDetails{}, x402.NewPaymentError(x402.ErrCodeMissingContractBinding, "no contract configured for token on "+config.Network)
			}
			contract = &defaultContract
		}
		details.TokenContract = contract.String()
	}

	return details, nil
}

// newNonce generates an anti-replay token that fits the on-chain memo.
// A UUID is 36 characters, so the fixed-length prefix loses two hex
// digits of entropy, which is still far beyond collision range.
func newNonce() string {
	nonce := uuid.NewString()
	if len(nonce) > MemoLength {
		nonce = nonce[:MemoLength]
	}
	return nonce
}

func expiration(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = DefaultExpirationSeconds
	}
	return time.Duration(seconds) * time.Second
}
