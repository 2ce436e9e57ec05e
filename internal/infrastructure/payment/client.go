package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/config"
)

// HTTPGateway talks to an external payment gateway over HTTP.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPGateway(cfg config.PaymentConfig) application.PaymentGateway {
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type authorizeRequest struct {
	CardNumber  string `json:"cardNumber"`
	AmountCents int64  `json:"amountCents"`
	Memo        string `json:"memo"`
}

type authorizeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	DeclineReason string `json:"declineReason"`
}

type refundRequest struct {
	TransactionID string `json:"transactionId"`
	AmountCents   int64  `json:"amountCents"`
	Reason        string `json:"reason"`
}

type refundResponse struct {
	Success bool `json:"success"`
}

func (g *HTTPGateway) Authorize(ctx context.Context, cardNumber string, amountCents int64, memo string) (*application.AuthorizationResult, error) {
	url := fmt.Sprintf("%s/api/v1/authorizations", g.baseURL)
	resp, err := sendRequest[authorizeRequest, authorizeResponse](g, ctx, url, &authorizeRequest{
		CardNumber:  cardNumber,
		AmountCents: amountCents,
		Memo:        memo,
	})
	if err != nil {
		return nil, err
	}

	return &application.AuthorizationResult{
		Authorized:    resp.Success,
		TransactionID: resp.TransactionID,
		DeclineReason: resp.DeclineReason,
	}, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) error {
	url := fmt.Sprintf("%s/api/v1/refunds", g.baseURL)
	resp, err := sendRequest[refundRequest, refundResponse](g, ctx, url, &refundRequest{
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Reason:        reason,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("gateway rejected refund for transaction %s", transactionID)
	}
	return nil
}

func sendRequest[Req any, Resp any](g *HTTPGateway, ctx context.Context, url string, reqBody *Req) (*Resp, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var gatewayResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gatewayResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &gatewayResp, nil
}
