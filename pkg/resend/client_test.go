package resend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/resilience"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantID        string
		wantErr       string
		wantTransient bool
	}{
		{name: "success", status: http.StatusOK, body: `{"id":"em_123"}`, wantID: "em_123"},
		{name: "rate_limit", status: http.StatusTooManyRequests, body: `{"message":"slow down"}`, wantErr: "http 429", wantTransient: true},
		{name: "server_error", status: http.StatusBadGateway, body: `oops`, wantErr: "http 502", wantTransient: true},
		{name: "validation", status: http.StatusUnprocessableEntity, body: `{"message":"invalid from"}`, wantErr: "invalid from"},
		{name: "malformed_response", status: http.StatusOK, body: `{bad`, wantErr: "unmarshal response"},
		{name: "missing_id", status: http.StatusOK, body: `{}`, wantErr: "no id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/emails", r.URL.Path)
				assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
				assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

				raw, _ := io.ReadAll(r.Body)
				var got map[string]any
				require.NoError(t, json.Unmarshal(raw, &got))
				assert.Equal(t, "Filing alert", got["subject"])
				assert.NotContains(t, got, "IdempotencyKey")
				tags := got["tags"].([]any)
				assert.Equal(t, "ticker", tags[0].(map[string]any)["name"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("re_test", WithBaseURL(srv.URL))
			id, err := c.Send(context.Background(), Email{
				From:           "alerts@example.com",
				To:             []string{"a@example.com"},
				Subject:        "Filing alert",
				HTML:           "<p>hi</p>",
				Tags:           []Tag{{Name: "ticker", Value: "ACME"}},
				IdempotencyKey: "key-1",
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestSend_NoRecipients(t *testing.T) {
	c := NewClient("re_test", WithBaseURL("http://127.0.0.1:0"))
	_, err := c.Send(context.Background(), Email{Subject: "x"})
	assert.ErrorContains(t, err, "no recipients")
}
