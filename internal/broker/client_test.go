package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second), srv
}

func TestSubmitOrderSendsBodyAndDecodesResult(t *testing.T) {
	var got OrderRequest
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("request = %s %s; want POST /orders", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(OrderResult{OrderID: "ord-77", Status: "Working"})
	})
	defer srv.Close()

	res, err := client.SubmitOrder(context.Background(), OrderRequest{
		AccountID: "acct-1",
		Symbol:    "NQZ5",
		Side:      "BUY",
		Type:      "LMT",
		Quantity:  2,
		Price:     21000.25,
	})
	if err != nil {
		t.Fatalf("SubmitOrder() = %v; want nil", err)
	}
	if res.OrderID != "ord-77" {
		t.Fatalf("order id = %q; want ord-77", res.OrderID)
	}
	if got.Symbol != "NQZ5" || got.Quantity != 2 || got.Price != 21000.25 {
		t.Fatalf("gateway saw %+v", got)
	}
}

func TestModifyOrderUsesPatch(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/orders/ord-9" {
			t.Errorf("request = %s %s; want PATCH /orders/ord-9", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(OrderResult{OrderID: "ord-9"})
	})
	defer srv.Close()

	if _, err := client.ModifyOrder(context.Background(), "ord-9", ModifyRequest{AccountID: "acct-1", Price: 21001}); err != nil {
		t.Fatalf("ModifyOrder() = %v; want nil", err)
	}
}

func TestErrorDetailSurfacesInCode(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"validation", http.StatusUnprocessableEntity, CodeValidation},
		{"not found", http.StatusNotFound, CodeNotFound},
		{"rejected", http.StatusConflict, CodeRejected},
		{"server error", http.StatusBadGateway, CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(apiError{Detail: "margin exceeded"})
			})
			defer srv.Close()

			_, err := client.SubmitOrder(context.Background(), OrderRequest{})
			var coded *Error
			if !errors.As(err, &coded) {
				t.Fatalf("error type = %T; want *Error", err)
			}
			if coded.Code != tc.wantCode {
				t.Fatalf("code = %s; want %s", coded.Code, tc.wantCode)
			}
			if coded.Message != "margin exceeded" {
				t.Fatalf("message = %q; want gateway detail", coded.Message)
			}
		})
	}
}

func TestCloseAllPostsAccountIDs(t *testing.T) {
	var body map[string][]string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/close-all" {
			t.Errorf("path = %s; want /accounts/close-all", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	if err := client.CloseAll(context.Background(), []string{"acct-1", "acct-2"}); err != nil {
		t.Fatalf("CloseAll() = %v; want nil", err)
	}
	if len(body["account_ids"]) != 2 {
		t.Fatalf("account_ids = %v; want both accounts", body["account_ids"])
	}
}

func TestContextCancellation(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client disconnect;
		// with an unread body the request context is never cancelled and
		// srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.SubmitOrder(ctx, OrderRequest{})
	if err == nil {
		t.Fatal("expected an error after context timeout")
	}
	var coded *Error
	if !errors.As(err, &coded) {
		t.Fatalf("error type = %T; want *Error", err)
	}
}
