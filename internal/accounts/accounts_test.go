package accounts

import (
	"errors"
	"testing"

	"github.com/dgnsrekt/tv_trader/internal/statestore"
)

func newTestStore(t *testing.T) (*Store, *statestore.Store) {
	t.Helper()
	state, err := statestore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("statestore.NewStore() failed: %v", err)
	}
	store, err := NewStore(state)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store, state
}

func testRoster() []Account {
	return []Account{
		{ID: "acct-1", Nickname: "Eval 50k"},
		{ID: "acct-2", Nickname: "Funded"},
		{ID: "acct-3", Nickname: "Bot", Strategy: "strat-9"},
	}
}

func TestReconcileAppliesDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	store.Reconcile(testRoster())

	views := store.Views()
	if len(views) != 3 {
		t.Fatalf("len(views) = %d; want 3", len(views))
	}
	manual := views[0]
	if manual.Quantity != 1 || manual.Active || manual.Mode != ModeManual {
		t.Fatalf("new account config = %+v; want {1 false manual}", manual.Config)
	}
}

func TestReconcileForcesStrategyAccountsInactive(t *testing.T) {
	store, _ := newTestStore(t)
	store.Reconcile(testRoster())

	if err := store.SetActive("acct-3", true); !errors.Is(err, ErrStrategyBound) {
		t.Fatalf("SetActive() = %v; want ErrStrategyBound", err)
	}

	for _, v := range store.Views() {
		if v.ID == "acct-3" {
			if v.Active || v.Mode != ModeAuto {
				t.Fatalf("strategy account config = %+v; want inactive auto", v.Config)
			}
		}
	}
}

func TestReconcileDropsDeletedAccounts(t *testing.T) {
	store, _ := newTestStore(t)
	store.Reconcile(testRoster())
	if err := store.SetActive("acct-1", true); err != nil {
		t.Fatalf("SetActive() = %v; want nil", err)
	}

	store.Reconcile([]Account{{ID: "acct-2", Nickname: "Funded"}})
	if err := store.SetActive("acct-1", true); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("SetActive(removed) = %v; want ErrUnknownAccount", err)
	}
	if len(store.Views()) != 1 {
		t.Fatalf("len(views) = %d; want 1 after removal", len(store.Views()))
	}
}

func TestConfigsSurviveRestart(t *testing.T) {
	store, state := newTestStore(t)
	store.Reconcile(testRoster())
	if err := store.SetActive("acct-1", true); err != nil {
		t.Fatalf("SetActive() = %v; want nil", err)
	}
	if err := store.SetQuantity("acct-1", 3); err != nil {
		t.Fatalf("SetQuantity() = %v; want nil", err)
	}
	store.SetSkipConfirm(true)

	reborn, err := NewStore(state)
	if err != nil {
		t.Fatalf("NewStore() after restart failed: %v", err)
	}
	reborn.Reconcile(testRoster())

	for _, v := range reborn.Views() {
		if v.ID == "acct-1" {
			if !v.Active || v.Quantity != 3 {
				t.Fatalf("restored config = %+v; want active with quantity 3", v.Config)
			}
		}
	}
	if !reborn.SkipConfirm() {
		t.Fatal("skip-confirm flag should survive restart")
	}
}

func TestClampQuantity(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{2.7, 2},
		{1, 1},
		{0.4, 1},
		{0, 1},
		{-5, 1},
	}
	for _, tc := range cases {
		if got := ClampQuantity(tc.in); got != tc.want {
			t.Fatalf("ClampQuantity(%v) = %d; want %d", tc.in, got, tc.want)
		}
	}
}

func TestActiveTargets(t *testing.T) {
	store, _ := newTestStore(t)
	store.Reconcile(testRoster())
	if err := store.SetActive("acct-2", true); err != nil {
		t.Fatalf("SetActive() = %v; want nil", err)
	}
	if err := store.SetQuantity("acct-2", 4); err != nil {
		t.Fatalf("SetQuantity() = %v; want nil", err)
	}

	targets := store.ActiveTargets()
	if len(targets) != 1 {
		t.Fatalf("len(targets) = %d; want 1", len(targets))
	}
	if targets[0].AccountID != "acct-2" || targets[0].Quantity != 4 || targets[0].Nickname != "Funded" {
		t.Fatalf("target = %+v", targets[0])
	}
}
