package x402

import (
	"fmt"
	"math/big"
)

// DefaultMaxTimeoutSeconds bounds how long a client has to complete a
// payment once a requirement is issued.
const DefaultMaxTimeoutSeconds = 300

// ResourceConfig defines payment configuration for a protected resource.
// Amount is the charge in the asset's smallest indivisible unit.
type ResourceConfig struct {
	Amount            string
	PayTo             string
	Network           string // bare network name, e.g. "testnet"
	Asset             Asset
	Description       string
	MimeType          string
	MaxTimeoutSeconds int
}

// BuildPaymentRequirements constructs one PaymentRequirement from server
// configuration. Computed freshly per call; requirements are per-attempt
// and never cached.
func BuildPaymentRequirements(config ResourceConfig) (PaymentRequirements, error) {
	amount, ok := new(big.Int).SetString(config.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return PaymentRequirements{}, &PaymentError{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("amount must be a non-negative integer, got %q", config.Amount),
		}
	}

	if !ValidAddress(config.PayTo) {
		return PaymentRequirements{}, &PaymentError{
			Code:    ErrCodeMalformedRecipient,
			Message: fmt.Sprintf("payTo is not a valid address: %s", config.PayTo),
		}
	}

	chainID, err := NetworkToChainID(config.Network)
	if err != nil {
		return PaymentRequirements{}, err
	}

	asset := config.Asset
	if asset.Kind == AssetKindFungibleToken && asset.Contract == nil {
		ref, ok := DefaultContract(asset.Kind, config.Network)
		if !ok {
			return PaymentRequirements{}, &PaymentError{
				Code:    ErrCodeMissingContractBinding,
				Message: fmt.Sprintf("no contract binding for %s on %s", asset.Kind, config.Network),
			}
		}
		asset.Contract = &ref
	}

	assetID, err := AssetToProtocolID(asset)
	if err != nil {
		return PaymentRequirements{}, err
	}

	timeout := config.MaxTimeoutSeconds
	if timeout == 0 {
		timeout = DefaultMaxTimeoutSeconds
	}

	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           chainID,
		Amount:            amount.String(),
		Asset:             assetID,
		PayTo:             config.PayTo,
		MaxTimeoutSeconds: timeout,
	}, nil
}

// NewPaymentRequired wraps requirements in a 402 response body. The
// resource info travels with the notice so clients can echo it back.
func NewPaymentRequired(requirements []PaymentRequirements, info ResourceInfo, errorMsg string) PaymentRequired {
	if errorMsg == "" {
		errorMsg = "Payment required"
	}
	return PaymentRequired{
		ProtocolVersion: ProtocolVersion,
		Error:           errorMsg,
		Resource:        &info,
		Accepts:         requirements,
	}
}
