package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
)

func registerAccountHandlers(api huma.API, svc Service) {
	type accountsOutput struct {
		Body struct {
			Accounts []accounts.View `json:"accounts"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-accounts", Method: http.MethodGet, Path: "/api/v1/accounts", Summary: "List accounts with their trading config", Tags: []string{"Accounts"}},
		func(ctx context.Context, input *struct{}) (*accountsOutput, error) {
			views, err := svc.AccountConfigs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &accountsOutput{}
			out.Body.Accounts = views
			return out, nil
		})

	type setActiveInput struct {
		AccountID string `path:"account_id"`
		Body      struct {
			Active bool `json:"active"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-account-active", Method: http.MethodPut, Path: "/api/v1/accounts/{account_id}/active", Summary: "Enable or disable trading on an account", Tags: []string{"Accounts"}},
		func(ctx context.Context, input *setActiveInput) (*statusOutput, error) {
			if err := svc.SetAccountActive(ctx, input.AccountID, input.Body.Active); err != nil {
				return nil, mapErr(err)
			}
			return status("updated"), nil
		})

	type setQuantityInput struct {
		AccountID string `path:"account_id"`
		Body      struct {
			Quantity float64 `json:"quantity"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-account-quantity", Method: http.MethodPut, Path: "/api/v1/accounts/{account_id}/quantity", Summary: "Set the per-order quantity for an account", Tags: []string{"Accounts"}},
		func(ctx context.Context, input *setQuantityInput) (*statusOutput, error) {
			if err := svc.SetAccountQuantity(ctx, input.AccountID, input.Body.Quantity); err != nil {
				return nil, mapErr(err)
			}
			return status("updated"), nil
		})

	type skipConfirmOutput struct {
		Body struct {
			SkipConfirm bool `json:"skip_confirm"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-skip-confirm", Method: http.MethodGet, Path: "/api/v1/settings/skip-confirm", Summary: "Read the skip order confirmation setting", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*skipConfirmOutput, error) {
			enabled, err := svc.SkipConfirm(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &skipConfirmOutput{}
			out.Body.SkipConfirm = enabled
			return out, nil
		})

	type setSkipConfirmInput struct {
		Body struct {
			SkipConfirm bool `json:"skip_confirm"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "set-skip-confirm", Method: http.MethodPut, Path: "/api/v1/settings/skip-confirm", Summary: "Toggle skipping of the broker order confirmation", Tags: []string{"Settings"}},
		func(ctx context.Context, input *setSkipConfirmInput) (*statusOutput, error) {
			if err := svc.SetSkipConfirm(ctx, input.Body.SkipConfirm); err != nil {
				return nil, mapErr(err)
			}
			return status("updated"), nil
		})
}
