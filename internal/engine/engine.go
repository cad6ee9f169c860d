// Package engine ties the overlay surface, account configs, and broker
// client together behind the operations the HTTP API exposes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
	"github.com/dgnsrekt/tv_trader/internal/broker"
	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/dispatch"
	"github.com/dgnsrekt/tv_trader/internal/feed"
	"github.com/dgnsrekt/tv_trader/internal/journal"
	"github.com/dgnsrekt/tv_trader/internal/notify"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
	"github.com/dgnsrekt/tv_trader/internal/stream"
	"github.com/dgnsrekt/tv_trader/internal/ticks"
)

// DefaultProtectTicks is the TP/SL distance used when protecting a
// position without explicit offsets.
const DefaultProtectTicks = 20

// Broker is the slice of the gateway client the engine needs.
type Broker interface {
	SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error)
	SubmitBracket(ctx context.Context, req broker.BracketRequest) (broker.OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, req broker.ModifyRequest) (broker.OrderResult, error)
	CancelOrder(ctx context.Context, orderID, accountID string) error
	ClosePosition(ctx context.Context, positionID, accountID string) (broker.PositionResult, error)
	ReversePosition(ctx context.Context, positionID, accountID string) (broker.PositionResult, error)
	ProtectPosition(ctx context.Context, positionID, accountID string, takeProfit, stopLoss float64) (broker.PositionResult, error)
	CloseAll(ctx context.Context, accountIDs []string) error
	ExecuteStrategy(ctx context.Context, strategyID string, params map[string]any) (broker.StrategyResult, error)
}

// Engine is the single owner of overlay and account state. Broker I/O
// happens outside the surface lock so a slow gateway never freezes the
// overlay.
type Engine struct {
	table    *ticks.Table
	surface  *overlay.Surface
	accounts *accounts.Store
	broker   Broker
	journal  *journal.Writer
	notifier *notify.Notifier
	events   *stream.Broker
}

// New wires an Engine. journal and notifier may be nil.
func New(table *ticks.Table, surface *overlay.Surface, accts *accounts.Store, gw Broker, jw *journal.Writer, n *notify.Notifier, events *stream.Broker) *Engine {
	return &Engine{
		table:    table,
		surface:  surface,
		accounts: accts,
		broker:   gw,
		journal:  jw,
		notifier: n,
		events:   events,
	}
}

func validationErr(format string, args ...any) error {
	return &broker.Error{Code: broker.CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Feed handlers. Each one folds a snapshot into local state and pushes
// the refreshed overlay to SSE clients.

func (e *Engine) HandleAccounts(roster []accounts.Account) {
	e.accounts.Reconcile(roster)
	e.events.PublishJSON("accounts", e.accounts.Views())
}

func (e *Engine) HandlePositions(positions []overlay.Position) {
	e.surface.ApplyPositions(positions)
	e.publishOverlay()
}

func (e *Engine) HandleOrders(orders []overlay.Order) {
	e.surface.ApplyOrders(orders)
	e.publishOverlay()
}

func (e *Engine) HandleQuote(q feed.Quote) {
	e.surface.SetCurrentPrice(q.Symbol, q.Last)
	e.publishOverlay()
}

func (e *Engine) publishOverlay() {
	e.events.PublishJSON("overlay", e.surface.Render())
}

// Overlay operations.

func (e *Engine) OverlayState(ctx context.Context) (overlay.RenderState, error) {
	return e.surface.Render(), nil
}

func (e *Engine) SetViewport(ctx context.Context, frame coords.Frame) (overlay.RenderState, error) {
	if frame.PaneHeight < 0 {
		return overlay.RenderState{}, validationErr("pane_height must not be negative")
	}
	e.surface.SetFrame(frame)
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

func (e *Engine) PointerDown(ctx context.Context, y float64, button int) (overlay.RenderState, error) {
	e.surface.PointerDown(y, button)
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

func (e *Engine) PointerMove(ctx context.Context, y float64) (overlay.RenderState, error) {
	e.surface.PointerMove(y)
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

// PointerUp resolves the drag session. When the drag produced a modify
// intent the order is re-priced at the gateway; the overlay keeps showing
// the old line until the next order snapshot confirms the move.
func (e *Engine) PointerUp(ctx context.Context, y float64) (*overlay.ModifyIntent, error) {
	intent := e.surface.PointerUp(y)
	defer e.publishOverlay()
	if intent == nil {
		return nil, nil
	}

	_, err := e.broker.ModifyOrder(ctx, intent.OrderID, broker.ModifyRequest{
		AccountID: intent.AccountID,
		Price:     intent.Price,
	})
	e.record(journal.Entry{
		Verb:   "modify",
		Symbol: intent.Symbol,
		Price:  intent.Price,
		Status: statusOf(err),
	})
	if err != nil {
		return intent, err
	}
	return intent, nil
}

// Bracket operations.

func (e *Engine) ActivateBracket(ctx context.Context) (overlay.RenderState, error) {
	if e.surface.ChartSymbol() == "" {
		return overlay.RenderState{}, validationErr("no chart symbol yet; wait for a viewport")
	}
	e.surface.ActivateBracket()
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

func (e *Engine) CancelBracket(ctx context.Context) (overlay.RenderState, error) {
	e.surface.CancelBracket()
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

func (e *Engine) ToggleBracketSide(ctx context.Context) (overlay.RenderState, error) {
	if _, _, _, _, _, placed := e.surface.BracketSnapshot(); !placed {
		return overlay.RenderState{}, validationErr("no bracket placed")
	}
	e.surface.ToggleBracketSide()
	state := e.surface.Render()
	e.events.PublishJSON("overlay", state)
	return state, nil
}

// SubmitBracket sends the placed bracket to every active account and
// removes the placement whatever the outcome; working legs reappear from
// the order feed.
func (e *Engine) SubmitBracket(ctx context.Context) (dispatch.Outcome, error) {
	symbol, side, entry, tp, sl, placed := e.surface.BracketSnapshot()
	if !placed {
		return dispatch.Outcome{}, validationErr("no bracket placed")
	}

	contract := e.table.ContractTicker(symbol)
	skip := e.accounts.SkipConfirm()
	out, err := dispatch.FanOut(ctx, "bracket", e.accounts.ActiveTargets(), func(ctx context.Context, tgt accounts.Target) (any, error) {
		return e.broker.SubmitBracket(ctx, broker.BracketRequest{
			AccountID:   tgt.AccountID,
			Symbol:      contract,
			Side:        string(side),
			Quantity:    tgt.Quantity,
			EntryPrice:  entry,
			TakeProfit:  tp,
			StopLoss:    sl,
			SkipConfirm: skip,
		})
	})
	if err != nil {
		return dispatch.Outcome{}, err
	}

	e.surface.CancelBracket()
	e.publishOverlay()
	e.record(journal.Entry{
		BatchID:   out.BatchID,
		Verb:      "bracket",
		Symbol:    symbol,
		Side:      string(side),
		Price:     entry,
		Status:    string(out.Status),
		Succeeded: out.Succeeded,
		Failed:    out.Failed,
		Results:   out.Results,
	})
	e.alert(out)
	return out, nil
}

// Trade operations.

// SubmitOrder fans a plain order out to every active account. Prices are
// snapped to the instrument's tick before leaving the agent.
func (e *Engine) SubmitOrder(ctx context.Context, symbol, side, orderType string, price, stopPrice float64) (dispatch.Outcome, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return dispatch.Outcome{}, validationErr("symbol is required")
	}
	parsedSide, err := parseSide(side)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	shortType := overlay.ShortOrderType(orderType)
	switch shortType {
	case "MKT", "LMT", "STP", "STP LMT":
	default:
		return dispatch.Outcome{}, validationErr("unknown order type %q", orderType)
	}
	if shortType != "MKT" && price <= 0 {
		return dispatch.Outcome{}, validationErr("price must be positive for %s orders", shortType)
	}

	display := e.table.NormalizeSymbol(symbol)
	contract := e.table.ContractTicker(display)
	price = e.table.RoundToTick(price, display)
	if stopPrice > 0 {
		stopPrice = e.table.RoundToTick(stopPrice, display)
	}

	skip := e.accounts.SkipConfirm()
	out, err := dispatch.FanOut(ctx, "submit", e.accounts.ActiveTargets(), func(ctx context.Context, tgt accounts.Target) (any, error) {
		return e.broker.SubmitOrder(ctx, broker.OrderRequest{
			AccountID:   tgt.AccountID,
			Symbol:      contract,
			Side:        string(parsedSide),
			Type:        shortType,
			Quantity:    tgt.Quantity,
			Price:       price,
			StopPrice:   stopPrice,
			SkipConfirm: skip,
		})
	})
	if err != nil {
		return dispatch.Outcome{}, err
	}

	e.record(journal.Entry{
		BatchID:   out.BatchID,
		Verb:      "submit",
		Symbol:    symbol,
		Side:      string(parsedSide),
		OrderType: shortType,
		Price:     price,
		Status:    string(out.Status),
		Succeeded: out.Succeeded,
		Failed:    out.Failed,
		Results:   out.Results,
	})
	e.alert(out)
	return out, nil
}

// Line operations target the single account that owns the line.

func (e *Engine) CancelOrder(ctx context.Context, lineID string) error {
	if strings.HasPrefix(lineID, "bracket:") {
		e.surface.CancelBracket()
		e.publishOverlay()
		return nil
	}

	line, ok := e.surface.OrderLine(lineID)
	if !ok {
		return validationErr("no working order line %q", lineID)
	}
	err := e.broker.CancelOrder(ctx, line.ID, line.AccountID)
	e.record(journal.Entry{Verb: "cancel", Symbol: line.Symbol, Status: statusOf(err)})
	return err
}

func (e *Engine) ClosePosition(ctx context.Context, lineID string) error {
	line, ok := e.surface.PositionLine(lineID)
	if !ok {
		return validationErr("no position line %q", lineID)
	}
	_, err := e.broker.ClosePosition(ctx, line.ID, line.AccountID)
	e.record(journal.Entry{Verb: "close", Symbol: line.Symbol, Side: string(line.Side), Status: statusOf(err)})
	return err
}

func (e *Engine) ReversePosition(ctx context.Context, lineID string) error {
	line, ok := e.surface.PositionLine(lineID)
	if !ok {
		return validationErr("no position line %q", lineID)
	}
	_, err := e.broker.ReversePosition(ctx, line.ID, line.AccountID)
	e.record(journal.Entry{Verb: "reverse", Symbol: line.Symbol, Side: string(line.Side), Status: statusOf(err)})
	return err
}

// ProtectPosition wraps a position in TP and SL orders at the given tick
// distances from its average price. Zero offsets use the default.
func (e *Engine) ProtectPosition(ctx context.Context, lineID string, tpTicks, slTicks int) error {
	line, ok := e.surface.PositionLine(lineID)
	if !ok {
		return validationErr("no position line %q", lineID)
	}
	if tpTicks <= 0 {
		tpTicks = DefaultProtectTicks
	}
	if slTicks <= 0 {
		slTicks = DefaultProtectTicks
	}

	tick := e.table.TickSize(line.Symbol)
	tpDelta := tick * float64(tpTicks)
	slDelta := tick * float64(slTicks)
	tp := line.Price + tpDelta
	sl := line.Price - slDelta
	if !line.Side.IsLongish() {
		tp = line.Price - tpDelta
		sl = line.Price + slDelta
	}
	tp = e.table.RoundToTick(tp, line.Symbol)
	sl = e.table.RoundToTick(sl, line.Symbol)

	_, err := e.broker.ProtectPosition(ctx, line.ID, line.AccountID, tp, sl)
	e.record(journal.Entry{Verb: "protect", Symbol: line.Symbol, Side: string(line.Side), Status: statusOf(err)})
	return err
}

// CloseAll flattens every active account in one gateway call.
func (e *Engine) CloseAll(ctx context.Context) error {
	targets := e.accounts.ActiveTargets()
	if len(targets) == 0 {
		return dispatch.ErrNoActiveAccounts
	}
	ids := make([]string, len(targets))
	for i, tgt := range targets {
		ids[i] = tgt.AccountID
	}
	err := e.broker.CloseAll(ctx, ids)
	e.record(journal.Entry{Verb: "close_all", Status: statusOf(err), Succeeded: len(ids)})
	return err
}

// ExecuteStrategy triggers a gateway-side strategy run.
func (e *Engine) ExecuteStrategy(ctx context.Context, strategyID string, params map[string]any) (broker.StrategyResult, error) {
	if strings.TrimSpace(strategyID) == "" {
		return broker.StrategyResult{}, validationErr("strategy id is required")
	}
	res, err := e.broker.ExecuteStrategy(ctx, strategyID, params)
	e.record(journal.Entry{Verb: "strategy", Status: statusOf(err)})
	return res, err
}

// Account operations.

func (e *Engine) AccountConfigs(ctx context.Context) ([]accounts.View, error) {
	return e.accounts.Views(), nil
}

func (e *Engine) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if err := e.accounts.SetActive(accountID, active); err != nil {
		return err
	}
	e.events.PublishJSON("accounts", e.accounts.Views())
	return nil
}

func (e *Engine) SetAccountQuantity(ctx context.Context, accountID string, quantity float64) error {
	if err := e.accounts.SetQuantity(accountID, quantity); err != nil {
		return err
	}
	e.events.PublishJSON("accounts", e.accounts.Views())
	return nil
}

func (e *Engine) SkipConfirm(ctx context.Context) (bool, error) {
	return e.accounts.SkipConfirm(), nil
}

func (e *Engine) SetSkipConfirm(ctx context.Context, enabled bool) error {
	e.accounts.SetSkipConfirm(enabled)
	return nil
}

func parseSide(side string) (overlay.Side, error) {
	switch overlay.Side(strings.ToUpper(strings.TrimSpace(side))) {
	case overlay.SideBuy:
		return overlay.SideBuy, nil
	case overlay.SideSell:
		return overlay.SideSell, nil
	default:
		return "", validationErr("side must be BUY or SELL")
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (e *Engine) record(entry journal.Entry) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(entry); err != nil {
		slog.Debug("journal record skipped", "verb", entry.Verb, "error", err)
	}
}

// alert pushes partial and total dispatch failures to the notifier
// without blocking the caller.
func (e *Engine) alert(out dispatch.Outcome) {
	if out.Status == dispatch.StatusOK || !e.notifier.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, out.Message); err != nil {
			slog.Warn("Dispatch alert failed", "error", err)
		}
	}()
}

// IsNoActiveAccounts reports whether err is the empty-dispatch error.
func IsNoActiveAccounts(err error) bool {
	return errors.Is(err, dispatch.ErrNoActiveAccounts)
}
