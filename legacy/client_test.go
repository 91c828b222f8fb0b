package legacy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/tony1908/x402Stacks"
)

const senderAddress = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"

// countingSigner counts signatures so tests can assert nothing was
// signed on the rejection paths.
type countingSigner struct {
	signs int
}

func (s *countingSigner) Address() string { return senderAddress }

func (s *countingSigner) SignHash(_ context.Context, _ []byte) ([]byte, error) {
	s.signs++
	return make([]byte, 65), nil
}

// recordingBroadcaster returns a fixed txid.
type recordingBroadcaster struct {
	broadcasts int
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, _ string) (string, error) {
	b.broadcasts++
	return "0xbroadcast", nil
}

func freshDetails(t *testing.T) PaymentDetails {
	t.Helper()
	details, err := NewPaymentDetails(baseConfig())
	require.NoError(t, err)
	return details
}

func TestParsePaymentDetails(t *testing.T) {
	body, err := json.Marshal(freshDetails(t))
	require.NoError(t, err)

	details, err := ParsePaymentDetails(body)
	require.NoError(t, err)
	assert.Equal(t, "100000", details.MaxAmountRequired)

	_, err = ParsePaymentDetails([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeMalformedPayload, x402.ErrorCode(err))

	_, err = ParsePaymentDetails([]byte(`{"network": "testnet"}`))
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeMalformedPayload, x402.ErrorCode(err))
}

func TestPayAttachesSignedTransaction(t *testing.T) {
	signer := &countingSigner{}
	client, err := NewClient(x402.NetworkTestnet, signer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	require.NoError(t, client.Pay(context.Background(), req, freshDetails(t)))

	assert.NotEmpty(t, req.Header.Get(HeaderPayment))
	assert.Empty(t, req.Header.Get(HeaderPaymentTxID))
	assert.Equal(t, 1, signer.signs)
}

func TestPayTokenSetsTokenTypeHeader(t *testing.T) {
	client, err := NewClient(x402.NetworkTestnet, &countingSigner{})
	require.NoError(t, err)

	details := freshDetails(t)
	details.TokenType = string(x402.AssetKindFungibleToken)
	details.TokenContract = issuerAddress + ".token-susdt"

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	require.NoError(t, client.Pay(context.Background(), req, details))

	assert.Equal(t, string(x402.AssetKindFungibleToken), req.Header.Get(HeaderPaymentTokenType))
}

func TestPayRejectsExpiredOffer(t *testing.T) {
	signer := &countingSigner{}
	client, err := NewClient(x402.NetworkTestnet, signer)
	require.NoError(t, err)

	details := freshDetails(t)
	details.ExpiresAt = time.Now().Add(-time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	err = client.Pay(context.Background(), req, details)
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeRequestExpired, x402.ErrorCode(err))
	assert.Zero(t, signer.signs, "expired offers must be rejected before signing")
}

func TestPayRejectsNetworkMismatch(t *testing.T) {
	client, err := NewClient(x402.NetworkMainnet, &countingSigner{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	err = client.Pay(context.Background(), req, freshDetails(t)) // testnet offer
	require.Error(t, err)
	assert.Equal(t, x402.ErrCodeNoCompatibleOption, x402.ErrorCode(err))
}

func TestPayClientBroadcastMode(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	client, err := NewClient(x402.NetworkTestnet, &countingSigner{},
		WithClientBroadcast(broadcaster, time.Millisecond))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	require.NoError(t, client.Pay(context.Background(), req, freshDetails(t)))

	assert.Equal(t, 1, broadcaster.broadcasts)
	assert.Equal(t, "0xbroadcast", req.Header.Get(HeaderPaymentTxID))
	assert.Empty(t, req.Header.Get(HeaderPayment), "broadcast mode must not also hand over the signed blob")
}

func TestDetailsAsset(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*PaymentDetails)
		wantKind x402.AssetKind
		wantCode string
	}{
		{
			name:     "default is native",
			mutate:   func(d *PaymentDetails) {},
			wantKind: x402.AssetKindNative,
		},
		{
			name: "explicit contract",
			mutate: func(d *PaymentDetails) {
				d.TokenType = string(x402.AssetKindFungibleToken)
				d.TokenContract = issuerAddress + ".token-susdt"
			},
			wantKind: x402.AssetKindFungibleToken,
		},
		{
			name: "token without contract uses built-in binding",
			mutate: func(d *PaymentDetails) {
				d.TokenType = string(x402.AssetKindFungibleToken)
			},
			wantKind: x402.AssetKindFungibleToken,
		},
		{
			name: "unknown token type",
			mutate: func(d *PaymentDetails) {
				d.TokenType = "erc20"
			},
			wantCode: x402.ErrCodeUnsupportedAsset,
		},
		{
			name: "malformed contract reference",
			mutate: func(d *PaymentDetails) {
				d.TokenType = string(x402.AssetKindFungibleToken)
				d.TokenContract = "garbage"
			},
			wantCode: x402.ErrCodeMalformedAsset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := PaymentDetails{Network: x402.NetworkTestnet}
			tt.mutate(&details)

			asset, err := detailsAsset(details)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, x402.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, asset.Kind)
		})
	}
}

// TestClientDoFullExchange runs the legacy negotiation end to end: 402
// with plain JSON details, payment signed, retry admitted.
func TestClientDoFullExchange(t *testing.T) {
	fake := &fakeFacilitator{report: VerifiedPayment{Status: StatusSuccess}}
	facilitatorServer := fake.server(t)
	defer facilitatorServer.Close()

	gated := httptest.NewServer(gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: facilitatorServer.URL}), false))
	defer gated.Close()

	signer := &countingSigner{}
	client, err := NewClient(x402.NetworkTestnet, signer)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, gated.URL+"/premium", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, signer.signs, "exactly one payment per exchange")
	assert.Equal(t, 1, fake.settleCalls)
}
