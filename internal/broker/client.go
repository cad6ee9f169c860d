package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the broker gateway's REST API. All methods honor the
// caller's context for cancellation.
type Client struct {
	client *resty.Client
}

// NewClient builds a Client for the given gateway base URL. Proxy
// configuration comes from the standard environment variables.
func NewClient(baseURL string, timeout time.Duration) *Client {
	// No transport retries: every call here is an order mutation and a
	// replayed submit could double-fill.
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "tv_trader")

	if token := os.Getenv("BROKER_API_TOKEN"); token != "" {
		client.SetAuthToken(token)
	}
	return &Client{client: client}
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetError(&apiError{})
}

// SubmitOrder places a single order on one account.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var out OrderResult
	resp, err := c.newRequest(ctx).SetBody(req).SetResult(&out).Post("/orders")
	if err := wrap(resp, err, "submit order"); err != nil {
		return OrderResult{}, err
	}
	return out, nil
}

// SubmitBracket places an entry order with TP and SL legs on one account.
func (c *Client) SubmitBracket(ctx context.Context, req BracketRequest) (OrderResult, error) {
	var out OrderResult
	resp, err := c.newRequest(ctx).SetBody(req).SetResult(&out).Post("/orders/bracket")
	if err := wrap(resp, err, "submit bracket"); err != nil {
		return OrderResult{}, err
	}
	return out, nil
}

// ModifyOrder moves a working order to a new price.
func (c *Client) ModifyOrder(ctx context.Context, orderID string, req ModifyRequest) (OrderResult, error) {
	var out OrderResult
	resp, err := c.newRequest(ctx).
		SetBody(req).
		SetResult(&out).
		SetPathParam("id", orderID).
		Patch("/orders/{id}")
	if err := wrap(resp, err, "modify order"); err != nil {
		return OrderResult{}, err
	}
	return out, nil
}

// CancelOrder cancels a working order.
func (c *Client) CancelOrder(ctx context.Context, orderID, accountID string) error {
	resp, err := c.newRequest(ctx).
		SetQueryParam("account_id", accountID).
		SetPathParam("id", orderID).
		Delete("/orders/{id}")
	return wrap(resp, err, "cancel order")
}

// ClosePosition flattens one position at market.
func (c *Client) ClosePosition(ctx context.Context, positionID, accountID string) (PositionResult, error) {
	var out PositionResult
	resp, err := c.newRequest(ctx).
		SetBody(map[string]string{"account_id": accountID}).
		SetResult(&out).
		SetPathParam("id", positionID).
		Post("/positions/{id}/close")
	if err := wrap(resp, err, "close position"); err != nil {
		return PositionResult{}, err
	}
	return out, nil
}

// ReversePosition flips one position to the opposite side at market.
func (c *Client) ReversePosition(ctx context.Context, positionID, accountID string) (PositionResult, error) {
	var out PositionResult
	resp, err := c.newRequest(ctx).
		SetBody(map[string]string{"account_id": accountID}).
		SetResult(&out).
		SetPathParam("id", positionID).
		Post("/positions/{id}/reverse")
	if err := wrap(resp, err, "reverse position"); err != nil {
		return PositionResult{}, err
	}
	return out, nil
}

// ProtectPosition attaches TP and SL orders around an open position.
func (c *Client) ProtectPosition(ctx context.Context, positionID, accountID string, takeProfit, stopLoss float64) (PositionResult, error) {
	var out PositionResult
	resp, err := c.newRequest(ctx).
		SetBody(map[string]any{
			"account_id":  accountID,
			"take_profit": takeProfit,
			"stop_loss":   stopLoss,
		}).
		SetResult(&out).
		SetPathParam("id", positionID).
		Post("/positions/{id}/protect")
	if err := wrap(resp, err, "protect position"); err != nil {
		return PositionResult{}, err
	}
	return out, nil
}

// CloseAll flattens every position and cancels every order on the given
// accounts in one gateway call.
func (c *Client) CloseAll(ctx context.Context, accountIDs []string) error {
	resp, err := c.newRequest(ctx).
		SetBody(map[string][]string{"account_ids": accountIDs}).
		Post("/accounts/close-all")
	return wrap(resp, err, "close all")
}

// ExecuteStrategy triggers a server-side strategy run.
func (c *Client) ExecuteStrategy(ctx context.Context, strategyID string, params map[string]any) (StrategyResult, error) {
	var out StrategyResult
	req := c.newRequest(ctx).SetResult(&out).SetPathParam("id", strategyID)
	if params != nil {
		req.SetBody(params)
	}
	resp, err := req.Post("/strategies/{id}/execute")
	if err := wrap(resp, err, "execute strategy"); err != nil {
		return StrategyResult{}, err
	}
	return out, nil
}

// wrap converts transport failures and non-2xx responses into coded errors.
func wrap(resp *resty.Response, err error, op string) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(CodeTimeout, op+" timed out", err)
		}
		return newError(CodeUnavailable, op+" failed", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	detail := ""
	if e, ok := resp.Error().(*apiError); ok && e.Detail != "" {
		detail = e.Detail
	}
	if detail == "" {
		detail = fmt.Sprintf("%s returned %s", op, resp.Status())
	}

	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return newError(CodeValidation, detail, nil)
	case http.StatusNotFound:
		return newError(CodeNotFound, detail, nil)
	case http.StatusConflict:
		return newError(CodeRejected, detail, nil)
	default:
		return newError(CodeUnavailable, detail, nil)
	}
}
