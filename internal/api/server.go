package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
	"github.com/dgnsrekt/tv_trader/internal/broker"
	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/dispatch"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
	"github.com/dgnsrekt/tv_trader/internal/stream"
)

// Service is the engine surface the HTTP layer drives.
type Service interface {
	OverlayState(ctx context.Context) (overlay.RenderState, error)
	SetViewport(ctx context.Context, frame coords.Frame) (overlay.RenderState, error)
	PointerDown(ctx context.Context, y float64, button int) (overlay.RenderState, error)
	PointerMove(ctx context.Context, y float64) (overlay.RenderState, error)
	PointerUp(ctx context.Context, y float64) (*overlay.ModifyIntent, error)
	ActivateBracket(ctx context.Context) (overlay.RenderState, error)
	CancelBracket(ctx context.Context) (overlay.RenderState, error)
	ToggleBracketSide(ctx context.Context) (overlay.RenderState, error)
	SubmitBracket(ctx context.Context) (dispatch.Outcome, error)
	SubmitOrder(ctx context.Context, symbol, side, orderType string, price, stopPrice float64) (dispatch.Outcome, error)
	CancelOrder(ctx context.Context, lineID string) error
	ClosePosition(ctx context.Context, lineID string) error
	ReversePosition(ctx context.Context, lineID string) error
	ProtectPosition(ctx context.Context, lineID string, tpTicks, slTicks int) error
	CloseAll(ctx context.Context) error
	ExecuteStrategy(ctx context.Context, strategyID string, params map[string]any) (broker.StrategyResult, error)
	AccountConfigs(ctx context.Context) ([]accounts.View, error)
	SetAccountActive(ctx context.Context, accountID string, active bool) error
	SetAccountQuantity(ctx context.Context, accountID string, quantity float64) error
	SkipConfirm(ctx context.Context) (bool, error)
	SetSkipConfirm(ctx context.Context, enabled bool) error
}

type stateOutput struct {
	Body overlay.RenderState
}

type outcomeOutput struct {
	Body dispatch.Outcome
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func status(s string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = s
	return out
}

// NewServer builds the HTTP handler: the REST API plus the SSE stream.
func NewServer(svc Service, events *stream.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Chart Trading Overlay API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/stream", sseHandler(events))

	registerOverlayHandlers(api, svc)
	registerTradeHandlers(api, svc)
	registerAccountHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dispatch.ErrNoActiveAccounts) {
		return huma.Error400BadRequest("no active accounts to dispatch to")
	}
	if errors.Is(err, accounts.ErrUnknownAccount) {
		return huma.Error404NotFound("unknown account")
	}
	if errors.Is(err, accounts.ErrStrategyBound) {
		return huma.Error409Conflict("account is strategy-controlled")
	}
	var coded *broker.Error
	if errors.As(err, &coded) {
		switch coded.Code {
		case broker.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case broker.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case broker.CodeRejected:
			return huma.Error409Conflict(coded.Message)
		case broker.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case broker.CodeUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
