package x402

import (
	"fmt"
	"regexp"
	"strings"
)

// Network names used by the legacy generation and by server configuration.
const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// CAIP-2 chain identifiers for the interoperable generation.
const (
	ChainIDMainnet Network = "stacks:1"
	ChainIDTestnet Network = "stacks:2147483648"
)

// AssetNative is the protocol identifier of the chain's base coin.
const AssetNative = "STX"

// NetworkToChainID converts a bare network name to its CAIP-2 chain
// identifier. The network set is closed; this is a protocol compatibility
// constraint, not an extensibility point.
func NetworkToChainID(name string) (Network, error) {
	switch name {
	case NetworkMainnet:
		return ChainIDMainnet, nil
	case NetworkTestnet:
		return ChainIDTestnet, nil
	}
	return "", &PaymentError{
		Code:    ErrCodeUnsupportedNetwork,
		Message: fmt.Sprintf("unknown network name: %s", name),
	}
}

// ChainIDToNetwork converts a CAIP-2 chain identifier back to its bare
// network name, failing on anything outside the closed set.
func ChainIDToNetwork(chainID Network) (string, error) {
	switch chainID {
	case ChainIDMainnet:
		return NetworkMainnet, nil
	case ChainIDTestnet:
		return NetworkTestnet, nil
	}
	return "", &PaymentError{
		Code:    ErrCodeUnsupportedNetwork,
		Message: fmt.Sprintf("unknown chain identifier: %s", chainID),
	}
}

// AssetKind is a closed variant tag for the two transfer shapes the
// protocol supports. Adding a kind means adding a branch to every switch
// on it; there is deliberately no generic fallthrough.
type AssetKind string

const (
	// AssetKindNative is the chain's base coin, moved by a direct value
	// transfer.
	AssetKindNative AssetKind = "native"

	// AssetKindFungibleToken is a SIP-010 token, moved by calling the
	// token contract's transfer entry point.
	AssetKindFungibleToken AssetKind = "sip10"
)

// ContractRef identifies a token contract by its issuer address and
// contract name, rendered as "<issuer>.<name>".
type ContractRef struct {
	Issuer string
	Name   string
}

func (c ContractRef) String() string {
	return c.Issuer + "." + c.Name
}

// Asset pairs an AssetKind with the contract reference a fungible token
// needs. Native assets carry no contract.
type Asset struct {
	Kind     AssetKind
	Contract *ContractRef
}

var (
	addressRegex      = regexp.MustCompile(`^S[PTMN][0-9A-HJKMNP-Z]{38,39}$`)
	contractNameRegex = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9]|[-_]){0,127}$`)
)

// ValidAddress reports whether addr is a well-formed Stacks principal.
func ValidAddress(addr string) bool {
	return addressRegex.MatchString(addr)
}

// AssetToProtocolID renders an asset as its protocol identifier: the
// native symbol for the base coin, the fully-qualified contract reference
// for a fungible token.
func AssetToProtocolID(asset Asset) (string, error) {
	switch asset.Kind {
	case AssetKindNative:
		return AssetNative, nil
	case AssetKindFungibleToken:
		if asset.Contract == nil {
			return "", &PaymentError{
				Code:    ErrCodeMissingContractBinding,
				Message: "fungible token asset has no contract reference",
			}
		}
		return asset.Contract.String(), nil
	}
	return "", &PaymentError{
		Code:    ErrCodeUnsupportedAsset,
		Message: fmt.Sprintf("unknown asset kind: %s", asset.Kind),
	}
}

// ParseAssetID parses a protocol asset identifier into an Asset. Accepts
// the native symbol or an "<issuer>.<name>" contract reference; anything
// else fails with malformed_asset.
func ParseAssetID(id string) (Asset, error) {
	if id == AssetNative {
		return Asset{Kind: AssetKindNative}, nil
	}

	issuer, name, found := strings.Cut(id, ".")
	if !found || !addressRegex.MatchString(issuer) || !contractNameRegex.MatchString(name) {
		return Asset{}, &PaymentError{
			Code:    ErrCodeMalformedAsset,
			Message: fmt.Sprintf("asset identifier matches neither the native symbol nor a contract reference: %s", id),
		}
	}

	return Asset{
		Kind:     AssetKindFungibleToken,
		Contract: &ContractRef{Issuer: issuer, Name: name},
	}, nil
}

// defaultContracts binds (asset kind, network) pairs to the token
// contracts the SDK knows out of the box. Only sUSDT ships by default;
// servers offering other tokens must supply an explicit contract.
var defaultContracts = map[AssetKind]map[string]ContractRef{
	AssetKindFungibleToken: {
		NetworkMainnet: {Issuer: "SP2XD7417HGPRTREMKF748VNEQPDRR0RMANB4X8BR", Name: "token-susdt"},
		NetworkTestnet: {Issuer: "ST2XD7417HGPRTREMKF748VNEQPDRR0RMANAJ84TK", Name: "token-susdt"},
	},
}

// DefaultContract returns the built-in contract binding for an asset kind
// on a network, if one exists.
func DefaultContract(kind AssetKind, network string) (ContractRef, bool) {
	byNetwork, ok := defaultContracts[kind]
	if !ok {
		return ContractRef{}, false
	}
	ref, ok := byNetwork[network]
	return ref, ok
}
