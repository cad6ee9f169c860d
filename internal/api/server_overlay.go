package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
)

func registerOverlayHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-overlay-state", Method: http.MethodGet, Path: "/api/v1/overlay", Summary: "Current overlay render state", Tags: []string{"Overlay"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			state, err := svc.OverlayState(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	type viewportInput struct {
		Body coords.Frame
	}
	huma.Register(api, huma.Operation{OperationID: "set-viewport", Method: http.MethodPut, Path: "/api/v1/overlay/viewport", Summary: "Update the chart viewport frame", Tags: []string{"Overlay"}},
		func(ctx context.Context, input *viewportInput) (*stateOutput, error) {
			state, err := svc.SetViewport(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	type pointerDownInput struct {
		Body struct {
			Y      float64 `json:"y"`
			Button int     `json:"button"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "pointer-down", Method: http.MethodPost, Path: "/api/v1/overlay/pointer/down", Summary: "Pointer press on the chart pane", Tags: []string{"Overlay"}},
		func(ctx context.Context, input *pointerDownInput) (*stateOutput, error) {
			state, err := svc.PointerDown(ctx, input.Body.Y, input.Body.Button)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	type pointerInput struct {
		Body struct {
			Y float64 `json:"y"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "pointer-move", Method: http.MethodPost, Path: "/api/v1/overlay/pointer/move", Summary: "Pointer move over the chart pane", Tags: []string{"Overlay"}},
		func(ctx context.Context, input *pointerInput) (*stateOutput, error) {
			state, err := svc.PointerMove(ctx, input.Body.Y)
			if err != nil {
				return nil, mapErr(err)
			}
			return &stateOutput{Body: state}, nil
		})

	type pointerUpOutput struct {
		Body struct {
			Modified bool                  `json:"modified"`
			Intent   *overlay.ModifyIntent `json:"intent,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "pointer-up", Method: http.MethodPost, Path: "/api/v1/overlay/pointer/up", Summary: "Pointer release, commits a drag if one is active", Tags: []string{"Overlay"}},
		func(ctx context.Context, input *pointerInput) (*pointerUpOutput, error) {
			intent, err := svc.PointerUp(ctx, input.Body.Y)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &pointerUpOutput{}
			out.Body.Modified = intent != nil
			out.Body.Intent = intent
			return out, nil
		})
}
