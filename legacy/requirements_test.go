package legacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/tony1908/x402Stacks"
)

const (
	payToAddress  = "ST2XD7417HGPRTREMKF748VNEQPDRR0RMANAJ84TK"
	issuerAddress = "SP2XD7417HGPRTREMKF748VNEQPDRR0RMANB4X8BR"
)

func baseConfig() DetailsConfig {
	return DetailsConfig{
		Amount:   "100000",
		PayTo:    payToAddress,
		Network:  x402.NetworkTestnet,
		Resource: "/premium",
	}
}

func TestNewPaymentDetails(t *testing.T) {
	before := time.Now()
	details, err := NewPaymentDetails(baseConfig())
	require.NoError(t, err)

	assert.Equal(t, "100000", details.MaxAmountRequired)
	assert.Equal(t, payToAddress, details.PayTo)
	assert.Equal(t, x402.NetworkTestnet, details.Network)
	assert.NotEmpty(t, details.Nonce)
	assert.LessOrEqual(t, len(details.Nonce), MemoLength, "nonce must fit the on-chain memo")

	// Default expiry is now + 300s, within test slack.
	wantExpiry := before.Add(DefaultExpirationSeconds * time.Second)
	assert.WithinDuration(t, wantExpiry, details.ExpiresAt, 5*time.Second)
}

func TestNewPaymentDetailsFreshPerCall(t *testing.T) {
	first, err := NewPaymentDetails(baseConfig())
	require.NoError(t, err)
	second, err := NewPaymentDetails(baseConfig())
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce, "nonce must be fresh per call")
}

func TestNewPaymentDetailsToken(t *testing.T) {
	config := baseConfig()
	config.Asset = x402.Asset{Kind: x402.AssetKindFungibleToken}

	details, err := NewPaymentDetails(config)
	require.NoError(t, err)

	assert.Equal(t, string(x402.AssetKindFungibleToken), details.TokenType)
	assert.Contains(t, details.TokenContract, ".token-susdt", "token details must bind the default contract")
}

func TestNewPaymentDetailsErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*DetailsConfig)
		wantCode string
	}{
		{
			name:     "bad amount",
			mutate:   func(c *DetailsConfig) { c.Amount = "lots" },
			wantCode: x402.ErrCodeInvalidAmount,
		},
		{
			name:     "negative amount",
			mutate:   func(c *DetailsConfig) { c.Amount = "-1" },
			wantCode: x402.ErrCodeInvalidAmount,
		},
		{
			name:     "bad recipient",
			mutate:   func(c *DetailsConfig) { c.PayTo = "nobody" },
			wantCode: x402.ErrCodeMalformedRecipient,
		},
		{
			name:     "unknown network",
			mutate:   func(c *DetailsConfig) { c.Network = "stacks:1" },
			wantCode: x402.ErrCodeUnsupportedNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseConfig()
			tt.mutate(&config)

			_, err := NewPaymentDetails(config)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, x402.ErrorCode(err))
		})
	}
}

func TestPaymentDetailsExpired(t *testing.T) {
	details := PaymentDetails{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, details.Expired(time.Now()))
	assert.True(t, details.Expired(time.Now().Add(2*time.Minute)))
}
