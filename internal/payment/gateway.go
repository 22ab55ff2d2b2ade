// Package payment talks to the payment service that issues refunds for
// captured booking payments.
package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sendgrid/rest"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/service"
	"vehicle-booking-engine/internal/utils"
)

type refundRequest struct {
	PaymentReference string `json:"payment_reference"`
	Amount           string `json:"amount"`
	Reason           string `json:"reason,omitempty"`
}

type refundResponse struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client implements service.PaymentGateway over the payment service's REST
// API.
type Client struct {
	baseURL string
	apiKey  string
	http    *rest.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

var _ service.PaymentGateway = (*Client)(nil)

func (c *Client) CreateRefund(ctx context.Context, req service.RefundRequest) (*service.GatewayRefund, error) {
	if req.PaymentReference == "" {
		return nil, domain.InvalidInput("payment reference is required")
	}
	body, err := json.Marshal(refundRequest{
		PaymentReference: req.PaymentReference,
		Amount:           formatAmount(req.Amount),
		Reason:           req.Reason,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode refund request")
	}

	request := rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + "/v1/refunds",
		Headers: map[string]string{
			"Authorization":   "Bearer " + c.apiKey,
			"Content-Type":    "application/json",
			"Idempotency-Key": req.IdempotencyKey,
		},
		Body: body,
	}

	logger.ExternalServiceCall("payment", "CreateRefund", "payment_reference", req.PaymentReference, "amount", req.Amount)
	resp, err := c.http.SendWithContext(ctx, request)
	if err != nil {
		err = errors.Mark(errors.Wrap(err, "refund request failed"), domain.ErrPaymentGateway)
		logger.ExternalServiceResult("payment", "CreateRefund", err)
		return nil, err
	}
	if resp.StatusCode >= 300 {
		err = errors.Mark(statusError(resp), domain.ErrPaymentGateway)
		logger.ExternalServiceResult("payment", "CreateRefund", err, "status", resp.StatusCode)
		return nil, err
	}

	var out refundResponse
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode refund response"), domain.ErrPaymentGateway)
	}
	if out.ID == "" {
		return nil, errors.Mark(errors.New("refund response without id"), domain.ErrPaymentGateway)
	}
	logger.ExternalServiceResult("payment", "CreateRefund", nil, "refund_id", out.ID, "status", out.Status)

	return &service.GatewayRefund{RefundID: out.ID, EstimatedArrival: out.EstimatedArrival}, nil
}

func statusError(resp *rest.Response) error {
	var e errorResponse
	if json.Unmarshal([]byte(resp.Body), &e) == nil {
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg != "" {
			return errors.Newf("payment service returned %d: %s", resp.StatusCode, msg)
		}
	}
	return errors.Newf("payment service returned %d", resp.StatusCode)
}

// formatAmount renders the amount as a decimal string with two places so
// the payment service never sees binary floating point.
func formatAmount(amount float64) string {
	return utils.Rat(amount).FloatString(2)
}

type disabledGateway struct{}

// Disabled returns a gateway that fails every refund. Refunds stay failed
// and can be retried once a payment service is configured.
func Disabled() service.PaymentGateway {
	return disabledGateway{}
}

func (disabledGateway) CreateRefund(context.Context, service.RefundRequest) (*service.GatewayRefund, error) {
	return nil, errors.Mark(errors.New("payment gateway not configured"), domain.ErrPaymentGateway)
}
