package legacy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFacilitator serves the legacy verify and settle endpoints with a
// scripted report, recording what it was asked.
type fakeFacilitator struct {
	report      VerifiedPayment
	verifyCalls int
	settleCalls int
	lastSettle  settleRequest
}

func (f *fakeFacilitator) server(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case verifyPath:
			f.verifyCalls++
		case settlePath:
			f.settleCalls++
			if err := json.NewDecoder(r.Body).Decode(&f.lastSettle); err != nil {
				t.Errorf("settle body does not decode: %v", err)
			}
		default:
			t.Errorf("unexpected facilitator path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(f.report)
	}))
}

func gateFor(facilitator *FacilitatorClient, acceptUnconfirmed bool) http.Handler {
	return PaymentMiddleware(GateConfig{
		Details:           baseConfig(),
		Facilitator:       facilitator,
		AcceptUnconfirmed: acceptUnconfirmed,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("paid content"))
	}))
}

func TestLegacyGateNoHeader(t *testing.T) {
	fake := &fakeFacilitator{report: VerifiedPayment{Status: StatusSuccess}}
	server := fake.server(t)
	defer server.Close()

	handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), false)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium", nil))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// The 402 body is the plain JSON details, not base64.
	var details PaymentDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "100000", details.MaxAmountRequired)
	assert.NotEmpty(t, details.Nonce)
	assert.False(t, details.ExpiresAt.IsZero())

	assert.Zero(t, fake.verifyCalls)
	assert.Zero(t, fake.settleCalls)
}

func TestLegacyGateStatusMatrix(t *testing.T) {
	tests := []struct {
		name              string
		status            PaymentStatus
		acceptUnconfirmed bool
		wantCode          int
	}{
		{"confirmed", StatusSuccess, false, http.StatusOK},
		{"pending rejected by default", StatusPending, false, http.StatusPaymentRequired},
		{"pending admitted when configured", StatusPending, true, http.StatusOK},
		{"failed", StatusFailed, false, http.StatusPaymentRequired},
		{"not found", StatusNotFound, false, http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeFacilitator{report: VerifiedPayment{Status: tt.status}}
			server := fake.server(t)
			defer server.Close()

			handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), tt.acceptUnconfirmed)

			req := httptest.NewRequest(http.MethodGet, "/premium", nil)
			req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, 1, fake.verifyCalls, "txid proof must go through verify")
			assert.Zero(t, fake.settleCalls)
		})
	}
}

func TestLegacyGateSettleMode(t *testing.T) {
	fake := &fakeFacilitator{report: VerifiedPayment{Status: StatusSuccess}}
	server := fake.server(t)
	defer server.Close()

	handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), false)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPayment, "00aabbcc")
	req.Header.Set(HeaderPaymentTokenType, "sip10")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.settleCalls)
	assert.Zero(t, fake.verifyCalls)
	assert.Equal(t, "00aabbcc", fake.lastSettle.Transaction)
	assert.Equal(t, "sip10", fake.lastSettle.TokenType)
}

func TestLegacyGateAmountMismatch(t *testing.T) {
	// Facilitator confirms the transaction but the observed transfer is
	// short of the asking price.
	fake := &fakeFacilitator{report: VerifiedPayment{
		Status:    StatusSuccess,
		Amount:    "1",
		Recipient: payToAddress,
	}}
	server := fake.server(t)
	defer server.Close()

	handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), false)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestLegacyGateWrongRecipient(t *testing.T) {
	fake := &fakeFacilitator{report: VerifiedPayment{
		Status:    StatusSuccess,
		Amount:    "100000",
		Recipient: issuerAddress, // paid someone else
	}}
	server := fake.server(t)
	defer server.Close()

	handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), false)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestLegacyGateNilFacilitator(t *testing.T) {
	handler := gateFor(nil, false)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "payment gate misconfigured", body["error"])
}

func TestLegacyGateHandlerPanic(t *testing.T) {
	fake := &fakeFacilitator{report: VerifiedPayment{Status: StatusSuccess}}
	server := fake.server(t)
	defer server.Close()

	handler := PaymentMiddleware(GateConfig{
		Details:     baseConfig(),
		Facilitator: NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret internal state")
	}))

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret internal state")
}

func TestLegacyGateFacilitatorDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	handler := gateFor(NewFacilitatorClient(&FacilitatorConfig{URL: server.URL}), false)

	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set(HeaderPaymentTxID, "0xdeadbeef")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A dead facilitator can never admit a request.
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}
