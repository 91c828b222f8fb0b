package stacks

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/tony1908/x402Stacks"
)

func newTestClient(t *testing.T) *ExactStacksClient {
	t.Helper()
	client, err := NewExactStacksClient(x402.NetworkTestnet, &stubSigner{address: senderAddress})
	require.NoError(t, err)
	return client
}

func TestNewExactStacksClient(t *testing.T) {
	client := newTestClient(t)
	assert.Equal(t, x402.SchemeExact, client.Scheme())
	assert.Equal(t, x402.ChainIDTestnet, client.Network())

	_, err := NewExactStacksClient("devnet", &stubSigner{address: senderAddress})
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeUnsupportedNetwork, x402.ErrorCode(err))
}

func TestCreatePaymentPayload(t *testing.T) {
	client := newTestClient(t)

	payload, err := client.CreatePaymentPayload(context.Background(), x402.PaymentRequirements{
		Scheme:  x402.SchemeExact,
		Network: x402.ChainIDTestnet,
		Amount:  "100000",
		Asset:   x402.AssetNative,
		PayTo:   recipientAddress,
	})
	require.NoError(t, err)

	hexTx, ok := payload["transaction"].(string)
	require.True(t, ok, "payload must carry the transaction")
	_, err = hex.DecodeString(hexTx)
	require.NoError(t, err, "transaction must be hex encoded")
}

func TestCreatePaymentPayloadNetworkMismatch(t *testing.T) {
	client := newTestClient(t)

	_, err := client.CreatePaymentPayload(context.Background(), x402.PaymentRequirements{
		Scheme:  x402.SchemeExact,
		Network: x402.ChainIDMainnet,
		Amount:  "100000",
		Asset:   x402.AssetNative,
		PayTo:   recipientAddress,
	})
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeUnsupportedNetwork, x402.ErrorCode(err))
}

func TestCreatePaymentPayloadMemoFromExtra(t *testing.T) {
	client := newTestClient(t)

	withMemo, err := client.CreatePaymentPayload(context.Background(), x402.PaymentRequirements{
		Scheme:  x402.SchemeExact,
		Network: x402.ChainIDTestnet,
		Amount:  "100000",
		Asset:   x402.AssetNative,
		PayTo:   recipientAddress,
		Extra:   map[string]interface{}{"memo": "invoice-42"},
	})
	require.NoError(t, err)

	without, err := client.CreatePaymentPayload(context.Background(), x402.PaymentRequirements{
		Scheme:  x402.SchemeExact,
		Network: x402.ChainIDTestnet,
		Amount:  "100000",
		Asset:   x402.AssetNative,
		PayTo:   recipientAddress,
	})
	require.NoError(t, err)

	assert.NotEqual(t, withMemo["transaction"], without["transaction"],
		"memo must be bound into the transaction")
}

func TestResolveAsset(t *testing.T) {
	client := newTestClient(t)

	t.Run("native symbol", func(t *testing.T) {
		asset, err := client.ResolveAsset(x402.AssetNative)
		require.NoError(t, err)
		assert.Equal(t, x402.AssetKindNative, asset.Kind)
	})

	t.Run("contract reference", func(t *testing.T) {
		asset, err := client.ResolveAsset(recipientAddress + ".token-susdt")
		require.NoError(t, err)
		require.Equal(t, x402.AssetKindFungibleToken, asset.Kind)
		assert.Equal(t, "token-susdt", asset.Contract.Name)
	})

	t.Run("known token symbol falls back to built-in binding", func(t *testing.T) {
		asset, err := client.ResolveAsset(TokenSymbolSUSDT)
		require.NoError(t, err)
		require.NotNil(t, asset.Contract)
		assert.Equal(t, "token-susdt", asset.Contract.Name)
	})

	t.Run("unknown symbol is malformed", func(t *testing.T) {
		_, err := client.ResolveAsset("DOGE")
		require.Error(t, err)
		assert.Equal(t, x402.ErrCodeMalformedAsset, x402.ErrorCode(err))
	})
}
