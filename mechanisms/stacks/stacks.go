// Package stacks implements the "exact" payment scheme for the Stacks
// blockchain: native STX value transfers and SIP-010 fungible-token
// contract calls, constructed and signed locally, never broadcast.
package stacks

import (
	"context"
	"fmt"
	"math/big"

	x402 "github.com/tony1908/x402Stacks"
)

// TokenSymbolSUSDT is the only bare token symbol with a built-in
// contract binding.
const TokenSymbolSUSDT = "sUSDT"

// ExactStacksClient creates payment payloads for the exact scheme on one
// Stacks network.
type ExactStacksClient struct {
	network string // bare network name
	chainID x402.Network
	signer  TxSigner
}

// NewExactStacksClient creates a scheme client for the given bare network
// name ("mainnet" or "testnet").
func NewExactStacksClient(network string, signer TxSigner) (*ExactStacksClient, error) {
	chainID, err := x402.NetworkToChainID(network)
	if err != nil {
		return nil, err
	}
	return &ExactStacksClient{
		network: network,
		chainID: chainID,
		signer:  signer,
	}, nil
}

// Scheme returns the payment scheme identifier.
func (c *ExactStacksClient) Scheme() string { return x402.SchemeExact }

// Network returns the CAIP-2 chain identifier this client pays on.
func (c *ExactStacksClient) Network() x402.Network { return c.chainID }

// CreatePaymentPayload builds and signs a transfer for the requirement,
// returning the inner payload with the hex-encoded signed transaction.
// The transaction is never submitted; broadcast timing stays with the
// resource server's facilitator.
func (c *ExactStacksClient) CreatePaymentPayload(ctx context.Context, requirements x402.PaymentRequirements) (map[string]interface{}, error) {
	if requirements.Network != c.chainID {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeUnsupportedNetwork,
			Message: fmt.Sprintf("requirement is for %s, client pays on %s", requirements.Network, c.chainID),
		}
	}

	amount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return nil, &x402.PaymentError{
			Code:    x402.ErrCodeInvalidAmount,
			Message: fmt.Sprintf("amount must be a non-negative integer, got %q", requirements.Amount),
		}
	}

	asset, err := c.ResolveAsset(requirements.Asset)
	if err != nil {
		return nil, err
	}

	memo, _ := requirements.Extra["memo"].(string)

	hexTx, err := c.BuildAndSign(ctx, TransferRequest{
		Network:   c.network,
		Recipient: requirements.PayTo,
		Amount:    amount,
		Asset:     asset,
		Memo:      memo,
	})
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"transaction": hexTx}, nil
}

// BuildAndSign constructs, signs, and serializes one transfer. Shared by
// both protocol generations.
func (c *ExactStacksClient) BuildAndSign(ctx context.Context, req TransferRequest) (string, error) {
	tx, err := BuildTransfer(req, c.signer.Address())
	if err != nil {
		return "", err
	}
	if err := tx.Sign(ctx, c.signer); err != nil {
		return "", err
	}
	return tx.Serialize()
}

// ResolveAsset resolves a protocol asset identifier into an Asset with a
// usable contract binding. Bare token symbols fall back to the built-in
// table; an unknown symbol is a missing binding, never silently coerced
// to a native transfer.
func (c *ExactStacksClient) ResolveAsset(assetID string) (x402.Asset, error) {
	asset, err := x402.ParseAssetID(assetID)
	if err == nil {
		return asset, nil
	}

	if assetID == TokenSymbolSUSDT {
		ref, ok := x402.DefaultContract(x402.AssetKindFungibleToken, c.network)
		if !ok {
			return x402.Asset{}, &x402.PaymentError{
				Code:    x402.ErrCodeMissingContractBinding,
				Message: fmt.Sprintf("no built-in contract for %s on %s", assetID, c.network),
			}
		}
		return x402.Asset{Kind: x402.AssetKindFungibleToken, Contract: &ref}, nil
	}

	return x402.Asset{}, err
}
