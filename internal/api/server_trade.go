package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_trader/internal/broker"
)

func registerTradeHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "activate-bracket", Method: http.MethodPost, Path: "/api/v1/bracket/activate", Summary: "Arm bracket placement, next chart click places the entry", Tags: []string{"Bracket"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			state, err := svc.ActivateBracket(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "cancel-bracket", Method: http.MethodPost, Path: "/api/v1/bracket/cancel", Summary: "Discard the pending bracket placement", Tags: []string{"Bracket"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			state, err := svc.CancelBracket(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-bracket-side", Method: http.MethodPost, Path: "/api/v1/bracket/toggle", Summary: "Flip the pending bracket between buy and sell", Tags: []string{"Bracket"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			state, err := svc.ToggleBracketSide(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "submit-bracket", Method: http.MethodPost, Path: "/api/v1/bracket/submit", Summary: "Submit the pending bracket to all active accounts", Tags: []string{"Bracket"}},
		func(ctx context.Context, input *struct{}) (*outcomeOutput, error) {
			outcome, err := svc.SubmitBracket(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &outcomeOutput{Body: outcome}, nil
		})

	type submitOrderInput struct {
		Body struct {
			Symbol    string  `json:"symbol"`
			Side      string  `json:"side"`
			OrderType string  `json:"order_type"`
			Price     float64 `json:"price,omitempty"`
			StopPrice float64 `json:"stop_price,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "submit-order", Method: http.MethodPost, Path: "/api/v1/orders", Summary: "Submit an order to all active accounts", Tags: []string{"Orders"}},
		func(ctx context.Context, input *submitOrderInput) (*outcomeOutput, error) {
			outcome, err := svc.SubmitOrder(ctx, input.Body.Symbol, input.Body.Side, input.Body.OrderType, input.Body.Price, input.Body.StopPrice)
			if err != nil {
				return nil, mapErr(err)
			}
			return &outcomeOutput{Body: outcome}, nil
		})

	type lineIDInput struct {
		LineID string `path:"line_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "cancel-order", Method: http.MethodDelete, Path: "/api/v1/orders/{line_id}", Summary: "Cancel the order behind an overlay line", Tags: []string{"Orders"}},
		func(ctx context.Context, input *lineIDInput) (*statusOutput, error) {
			if err := svc.CancelOrder(ctx, input.LineID); err != nil {
				return nil, mapErr(err)
			}
			return status("cancelled"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-position", Method: http.MethodPost, Path: "/api/v1/positions/{line_id}/close", Summary: "Close the position behind an overlay line", Tags: []string{"Positions"}},
		func(ctx context.Context, input *lineIDInput) (*statusOutput, error) {
			if err := svc.ClosePosition(ctx, input.LineID); err != nil {
				return nil, mapErr(err)
			}
			return status("closed"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "reverse-position", Method: http.MethodPost, Path: "/api/v1/positions/{line_id}/reverse", Summary: "Reverse the position behind an overlay line", Tags: []string{"Positions"}},
		func(ctx context.Context, input *lineIDInput) (*statusOutput, error) {
			if err := svc.ReversePosition(ctx, input.LineID); err != nil {
				return nil, mapErr(err)
			}
			return status("reversed"), nil
		})

	type protectInput struct {
		LineID string `path:"line_id"`
		Body   struct {
			TakeProfitTicks int `json:"take_profit_ticks,omitempty"`
			StopLossTicks   int `json:"stop_loss_ticks,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "protect-position", Method: http.MethodPost, Path: "/api/v1/positions/{line_id}/protect", Summary: "Attach take profit and stop loss to a position", Tags: []string{"Positions"}},
		func(ctx context.Context, input *protectInput) (*statusOutput, error) {
			if err := svc.ProtectPosition(ctx, input.LineID, input.Body.TakeProfitTicks, input.Body.StopLossTicks); err != nil {
				return nil, mapErr(err)
			}
			return status("protected"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-all", Method: http.MethodPost, Path: "/api/v1/accounts/close-all", Summary: "Flatten every active account", Tags: []string{"Positions"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.CloseAll(ctx); err != nil {
				return nil, mapErr(err)
			}
			return status("closed"), nil
		})

	type executeStrategyInput struct {
		StrategyID string `path:"strategy_id"`
		Body       struct {
			Params map[string]any `json:"params,omitempty"`
		}
	}
	type executeStrategyOutput struct {
		Body broker.StrategyResult
	}
	huma.Register(api, huma.Operation{OperationID: "execute-strategy", Method: http.MethodPost, Path: "/api/v1/strategies/{strategy_id}/execute", Summary: "Trigger a broker-side strategy", Tags: []string{"Strategy"}},
		func(ctx context.Context, input *executeStrategyInput) (*executeStrategyOutput, error) {
			result, err := svc.ExecuteStrategy(ctx, input.StrategyID, input.Body.Params)
			if err != nil {
				return nil, mapErr(err)
			}
			return &executeStrategyOutput{Body: result}, nil
		})
}
