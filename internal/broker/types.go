package broker

import "fmt"

const (
	CodeValidation  = "VALIDATION"
	CodeRejected    = "ORDER_REJECTED"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "BROKER_UNAVAILABLE"
	CodeTimeout     = "BROKER_TIMEOUT"
)

// Error is a typed error used for stable API mapping.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// OrderRequest is a single-account order submission.
type OrderRequest struct {
	AccountID   string  `json:"account_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price,omitempty"`
	StopPrice   float64 `json:"stop_price,omitempty"`
	SkipConfirm bool    `json:"skip_confirm,omitempty"`
}

// BracketRequest submits an entry order with attached take-profit and
// stop-loss legs.
type BracketRequest struct {
	AccountID   string  `json:"account_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    int     `json:"quantity"`
	EntryPrice  float64 `json:"entry_price"`
	TakeProfit  float64 `json:"take_profit"`
	StopLoss    float64 `json:"stop_loss"`
	SkipConfirm bool    `json:"skip_confirm,omitempty"`
}

// ModifyRequest moves a working order to a new price.
type ModifyRequest struct {
	AccountID string  `json:"account_id"`
	Price     float64 `json:"price"`
}

// OrderResult is the broker's acknowledgement of an order operation.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
}

// PositionResult is the broker's acknowledgement of a position operation.
type PositionResult struct {
	PositionID string `json:"position_id"`
	Status     string `json:"status,omitempty"`
}

// StrategyResult reports a strategy execution kick-off.
type StrategyResult struct {
	StrategyID string `json:"strategy_id"`
	Status     string `json:"status,omitempty"`
}

// apiError is the broker's error envelope.
type apiError struct {
	Detail string `json:"detail"`
}
