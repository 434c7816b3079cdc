// Package exchange implements the exchange REST client OrderMachine
// consumes (§6): submitOrder, cancelOrder, and a reconciliation snapshot,
// against a generic "place/cancel/list-open-orders" contract rather than
// any one venue's API. Every mutating request is rate-limited and retried
// on 5xx the way a CLOB REST client must be; the transport itself carries
// no trading logic.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
)

// Config configures the REST client's transport.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Timeout    time.Duration
}

// wireOrder is the REST API's JSON shape for order placement.
type wireOrder struct {
	Ticker string `json:"ticker"`
	Side   string `json:"side"`
	Action string `json:"action"`
	Type   string `json:"type"`
	Count  int    `json:"count"`
	Price  int    `json:"price,omitempty"`
}

type wireSubmitResponse struct {
	ExchangeID string `json:"exchange_id"`
	Filled     int    `json:"filled"`
	FillPrice  int    `json:"fill_price"`
}

type wireOpenOrder struct {
	ExchangeID      string `json:"exchange_id"`
	Status          string `json:"status"`
	FilledContracts int    `json:"filled_contracts"`
	AvgFillPrice    int    `json:"avg_fill_price"`
}

// terminalStatuses are the wire-level order statuses treated as terminal
// by reconciliation (§4.1 reconcile — "locally open but remotely
// terminal").
var terminalStatuses = map[string]bool{
	"filled": true, "canceled": true, "cancelled": true, "rejected": true, "expired": true,
}

// Client is a resty-backed REST client satisfying
// ordermachine.ExchangeClient and the reconciliation snapshot surface.
type Client struct {
	http     *resty.Client
	orderRL  *tokenBucket
	cancelRL *tokenBucket
	log      zerolog.Logger
}

// NewClient builds a REST client with retry and per-category rate
// limiting, grounded on the sibling market-maker's resty CLOB client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-API-KEY", cfg.APIKey)

	return &Client{
		http:     http,
		orderRL:  newTokenBucket(50, 10),
		cancelRL: newTokenBucket(50, 10),
		log:      log,
	}
}

// SubmitOrder places one order and returns the exchange's immediate
// acknowledgement. Satisfies ordermachine.ExchangeClient.
func (c *Client) SubmitOrder(ctx context.Context, req ordermachine.SubmitRequest) (ordermachine.SubmitResponse, error) {
	if err := c.orderRL.wait(ctx); err != nil {
		return ordermachine.SubmitResponse{}, err
	}

	body := wireOrder{
		Ticker: req.Ticker,
		Side:   string(req.Side),
		Action: string(req.Action),
		Type:   string(req.Type),
		Count:  req.Count,
		Price:  req.Price,
	}

	var result wireSubmitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return ordermachine.SubmitResponse{}, fmt.Errorf("exchange: submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return ordermachine.SubmitResponse{}, fmt.Errorf("exchange: submit order: status %d: %s", resp.StatusCode(), resp.String())
	}

	return ordermachine.SubmitResponse{
		ExchangeID: result.ExchangeID,
		Filled:     result.Filled,
		FillPrice:  result.FillPrice,
	}, nil
}

// CancelOrder cancels a resting order by its exchange-assigned ID.
// Satisfies ordermachine.ExchangeClient.
func (c *Client) CancelOrder(ctx context.Context, exchangeID string) error {
	if err := c.cancelRL.wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", exchangeID).
		Delete("/orders/{id}")
	if err != nil {
		return fmt.Errorf("exchange: cancel order %s: %w", exchangeID, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		return fmt.Errorf("exchange: cancel order %s: status %d: %s", exchangeID, resp.StatusCode(), resp.String())
	}
	return nil
}

// OpenOrders fetches the exchange's current view of open orders for
// reconciliation (§6 getOrdersSnapshot; satisfies
// portfolio.ExchangeSnapshotter).
func (c *Client) OpenOrders(ctx context.Context) ([]ordermachine.ExchangeOrder, error) {
	var wire []wireOpenOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&wire).
		Get("/orders")
	if err != nil {
		return nil, fmt.Errorf("exchange: orders snapshot: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("exchange: orders snapshot: status %d: %s", resp.StatusCode(), resp.String())
	}

	snapshot := make([]ordermachine.ExchangeOrder, 0, len(wire))
	for _, o := range wire {
		snapshot = append(snapshot, ordermachine.ExchangeOrder{
			ExchangeID:      o.ExchangeID,
			Terminal:        terminalStatuses[o.Status],
			FilledContracts: o.FilledContracts,
			AvgFillPrice:    o.AvgFillPrice,
		})
	}
	return snapshot, nil
}
