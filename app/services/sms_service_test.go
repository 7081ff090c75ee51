package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/kargo/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSMSProvider(t *testing.T, handler http.HandlerFunc) *HTTPSMSProvider {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	p := NewHTTPSMSProvider(&config.SMSConfig{
		ProviderDomain: strings.TrimPrefix(srv.URL, "https://"),
		APIKey:         "key-1",
		SourceNumber:   "KARGO",
		RetryCount:     2,
		ValidityPeriod: 300,
		Timeout:        5 * time.Second,
	}).(*HTTPSMSProvider)
	p.client = srv.Client()
	return p
}

func TestHTTPSMSProviderSendsBatchPayload(t *testing.T) {
	var got []SMSRequest
	p := newTestSMSProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3.0.1/send", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode([]SMSResponse{{Recipient: "22507000000", Status: "ACCEPTED", StatusCode: 200}})
	})

	err := p.SendSMS(context.Background(), "+22507000000", "Your pickup is scheduled")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "22507000000", got[0].Recipient)
	assert.Equal(t, "KARGO", got[0].SrcNum)
	assert.Equal(t, 1, got[0].Type)
	assert.Equal(t, 2, got[0].RetryCount)
}

func TestHTTPSMSProviderFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{"http error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, "HTTP 401"},
		{"rejected message", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]SMSResponse{{Recipient: "22507000000", Status: "REJECTED", StatusCode: 400}})
		}, "REJECTED"},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestSMSProvider(t, tt.handler)
			err := p.SendSMS(context.Background(), "+22507000000", "hello")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
