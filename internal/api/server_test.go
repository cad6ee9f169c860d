package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
	"github.com/dgnsrekt/tv_trader/internal/broker"
	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/dispatch"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
	"github.com/dgnsrekt/tv_trader/internal/stream"
)

type fakeService struct {
	state overlay.RenderState

	lastFrame    coords.Frame
	lastOrder    []any
	lastLineID   string
	cancelErr    error
	submitErr    error
	setActiveErr error
	activeCalls  []string
}

func (f *fakeService) OverlayState(ctx context.Context) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) SetViewport(ctx context.Context, frame coords.Frame) (overlay.RenderState, error) {
	f.lastFrame = frame
	return f.state, nil
}

func (f *fakeService) PointerDown(ctx context.Context, y float64, button int) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) PointerMove(ctx context.Context, y float64) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) PointerUp(ctx context.Context, y float64) (*overlay.ModifyIntent, error) {
	return &overlay.ModifyIntent{OrderID: "ord-1", AccountID: "acct-1", Symbol: "NQZ5", Price: 21000.25}, nil
}

func (f *fakeService) ActivateBracket(ctx context.Context) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) CancelBracket(ctx context.Context) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) ToggleBracketSide(ctx context.Context) (overlay.RenderState, error) {
	return f.state, nil
}

func (f *fakeService) SubmitBracket(ctx context.Context) (dispatch.Outcome, error) {
	return dispatch.Outcome{Status: dispatch.StatusOK}, nil
}

func (f *fakeService) SubmitOrder(ctx context.Context, symbol, side, orderType string, price, stopPrice float64) (dispatch.Outcome, error) {
	if f.submitErr != nil {
		return dispatch.Outcome{}, f.submitErr
	}
	f.lastOrder = []any{symbol, side, orderType, price, stopPrice}
	return dispatch.Outcome{Status: dispatch.StatusOK, Message: "submit succeeded on 1 account(s)"}, nil
}

func (f *fakeService) CancelOrder(ctx context.Context, lineID string) error {
	f.lastLineID = lineID
	return f.cancelErr
}

func (f *fakeService) ClosePosition(ctx context.Context, lineID string) error {
	f.lastLineID = lineID
	return nil
}

func (f *fakeService) ReversePosition(ctx context.Context, lineID string) error {
	f.lastLineID = lineID
	return nil
}

func (f *fakeService) ProtectPosition(ctx context.Context, lineID string, tpTicks, slTicks int) error {
	f.lastLineID = lineID
	return nil
}

func (f *fakeService) CloseAll(ctx context.Context) error { return nil }

func (f *fakeService) ExecuteStrategy(ctx context.Context, strategyID string, params map[string]any) (broker.StrategyResult, error) {
	return broker.StrategyResult{StrategyID: strategyID, Status: "started"}, nil
}

func (f *fakeService) AccountConfigs(ctx context.Context) ([]accounts.View, error) {
	return []accounts.View{
		{Account: accounts.Account{ID: "acct-1", Nickname: "Eval"}, Config: accounts.Config{Quantity: 1, Active: true, Mode: accounts.ModeManual}},
	}, nil
}

func (f *fakeService) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if f.setActiveErr != nil {
		return f.setActiveErr
	}
	f.activeCalls = append(f.activeCalls, accountID)
	return nil
}

func (f *fakeService) SetAccountQuantity(ctx context.Context, accountID string, quantity float64) error {
	return nil
}

func (f *fakeService) SkipConfirm(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeService) SetSkipConfirm(ctx context.Context, enabled bool) error { return nil }

func newTestServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(svc, stream.NewBroker()))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestOverlayState(t *testing.T) {
	svc := &fakeService{state: overlay.RenderState{Ready: true, ChartSymbol: "NQZ5", PaneHeight: 800}}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/v1/overlay")
	if err != nil {
		t.Fatalf("overlay request: %v", err)
	}
	defer resp.Body.Close()
	var state overlay.RenderState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.Ready || state.ChartSymbol != "NQZ5" {
		t.Errorf("state = %+v, want ready NQZ5", state)
	}
}

func TestSubmitOrderRoutesBody(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	payload := `{"symbol":"NQ","side":"BUY","order_type":"Limit","price":21000.25}`
	resp, err := http.Post(srv.URL+"/api/v1/orders", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	want := []any{"NQ", "BUY", "Limit", 21000.25, 0.0}
	for i, v := range want {
		if svc.lastOrder[i] != v {
			t.Errorf("order arg %d = %v, want %v", i, svc.lastOrder[i], v)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &broker.Error{Code: broker.CodeValidation, Message: "bad side"}, http.StatusBadRequest},
		{"rejected", &broker.Error{Code: broker.CodeRejected, Message: "rejected"}, http.StatusConflict},
		{"not found", &broker.Error{Code: broker.CodeNotFound, Message: "gone"}, http.StatusNotFound},
		{"timeout", &broker.Error{Code: broker.CodeTimeout, Message: "slow"}, http.StatusGatewayTimeout},
		{"unavailable", &broker.Error{Code: broker.CodeUnavailable, Message: "down"}, http.StatusBadGateway},
		{"no active accounts", dispatch.ErrNoActiveAccounts, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{submitErr: tc.err})

			payload := `{"symbol":"NQ","side":"BUY","order_type":"Market"}`
			resp, err := http.Post(srv.URL+"/api/v1/orders", "application/json", strings.NewReader(payload))
			if err != nil {
				t.Fatalf("submit request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestStrategyBoundAccountConflict(t *testing.T) {
	srv := newTestServer(t, &fakeService{setActiveErr: accounts.ErrStrategyBound})

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/accounts/acct-9/active", strings.NewReader(`{"active":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("set active request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelOrderPassesLineID(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/orders/ord-7", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cancel request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if svc.lastLineID != "ord-7" {
		t.Errorf("line id = %q, want ord-7", svc.lastLineID)
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	events := stream.NewBroker()
	srv := httptest.NewServer(NewServer(&fakeService{}, events))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?events=overlay", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Filtered-out type first, then the one the client asked for.
	events.Publish(stream.Event{Type: "accounts", Payload: `{"n":1}`})
	events.Publish(stream.Event{Type: "overlay", Payload: `{"ready":true}`})

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line = strings.TrimRight(line, "\n"); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: overlay" {
		t.Errorf("event line = %q, want overlay", lines[0])
	}
	if !bytes.Contains([]byte(lines[1]), []byte(`"ready":true`)) {
		t.Errorf("data line = %q", lines[1])
	}
}
