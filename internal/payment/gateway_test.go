package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/service"
)

func TestClient_CreateRefund(t *testing.T) {
	var got refundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "Bearer pk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "booking-5-cancelled", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"re_123","status":"pending","estimated_arrival":"2026-03-08T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "pk_test", 5*time.Second)
	refund, err := c.CreateRefund(context.Background(), service.RefundRequest{
		PaymentReference: "pay_123",
		Amount:           750.005,
		Reason:           "cancelled by renter",
		IdempotencyKey:   "booking-5-cancelled",
	})
	require.NoError(t, err)

	assert.Equal(t, "re_123", refund.RefundID)
	require.NotNil(t, refund.EstimatedArrival)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), refund.EstimatedArrival.UTC())
	assert.Equal(t, "pay_123", got.PaymentReference)
	assert.Equal(t, "750.01", got.Amount)
}

func TestClient_CreateRefund_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "declined with message", status: http.StatusUnprocessableEntity, body: `{"message":"payment already refunded"}`, wantMsg: "payment already refunded"},
		{name: "server error", status: http.StatusBadGateway, body: `upstream`, wantMsg: "returned 502"},
		{name: "missing id", status: http.StatusOK, body: `{"status":"pending"}`, wantMsg: "without id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "pk", time.Second).CreateRefund(context.Background(), service.RefundRequest{
				PaymentReference: "pay_1",
				Amount:           10,
				IdempotencyKey:   "k",
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrPaymentGateway))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_CreateRefund_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "pk", time.Second).CreateRefund(context.Background(), service.RefundRequest{
		PaymentReference: "pay_1",
		Amount:           10,
	})
	assert.True(t, errors.Is(err, domain.ErrPaymentGateway))
}

func TestClient_CreateRefund_RequiresReference(t *testing.T) {
	_, err := NewClient("http://unused", "pk", time.Second).CreateRefund(context.Background(), service.RefundRequest{Amount: 10})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled().CreateRefund(context.Background(), service.RefundRequest{PaymentReference: "pay_1", Amount: 1})
	assert.True(t, errors.Is(err, domain.ErrPaymentGateway))
}
