package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/dgnsrekt/tv_trader/internal/statestore"
)

// Mode says who controls an account's participation in dispatch.
type Mode string

const (
	// ModeManual accounts are toggled by the operator.
	ModeManual Mode = "manual"
	// ModeAuto accounts are owned by an attached strategy and cannot be
	// toggled or quantity-edited by hand.
	ModeAuto Mode = "auto"
)

var (
	// ErrUnknownAccount is returned for ids absent from the broker roster.
	ErrUnknownAccount = errors.New("accounts: unknown account")
	// ErrStrategyBound is returned when a manual edit targets an account
	// that a strategy controls.
	ErrStrategyBound = errors.New("accounts: account is strategy-controlled")
)

const (
	configsDoc     = "account_configs"
	skipConfirmDoc = "skip_confirm"
)

// Account is one broker account as reported by the roster feed.
type Account struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	// Strategy is the id of the strategy bound to this account, empty
	// when the operator controls it.
	Strategy string `json:"strategy,omitempty"`
}

// Config is the per-account dispatch setting.
type Config struct {
	Quantity int  `json:"quantity"`
	Active   bool `json:"is_active"`
	Mode     Mode `json:"mode"`
}

// View joins an account with its config for API responses.
type View struct {
	Account
	Config
}

// Target is one dispatch destination.
type Target struct {
	AccountID string
	Nickname  string
	Quantity  int
}

type skipConfirmState struct {
	Enabled bool `json:"enabled"`
}

// Store holds the account roster and per-account configs, persisting
// config changes through a statestore so they survive restarts.
type Store struct {
	mu sync.Mutex

	state   *statestore.Store
	roster  map[string]Account
	order   []string
	configs map[string]Config

	skipConfirm bool
}

// NewStore builds a Store, loading any previously persisted configs and
// the skip-confirm flag.
func NewStore(state *statestore.Store) (*Store, error) {
	s := &Store{
		state:   state,
		roster:  make(map[string]Account),
		configs: make(map[string]Config),
	}

	if err := state.Load(configsDoc, &s.configs); err != nil && !errors.Is(err, statestore.ErrNotExists) {
		return nil, fmt.Errorf("accounts: load configs: %w", err)
	}
	var sc skipConfirmState
	if err := state.Load(skipConfirmDoc, &sc); err != nil {
		if !errors.Is(err, statestore.ErrNotExists) {
			return nil, fmt.Errorf("accounts: load skip-confirm: %w", err)
		}
	} else {
		s.skipConfirm = sc.Enabled
	}
	return s, nil
}

// Reconcile aligns configs with the live roster: new accounts get the
// default config, configs for deleted accounts are dropped, and
// strategy-bound accounts are forced inactive and auto so manual dispatch
// never touches them.
func (s *Store) Reconcile(roster []Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster = make(map[string]Account, len(roster))
	s.order = s.order[:0]
	seen := make(map[string]bool, len(roster))
	changed := false

	for _, acct := range roster {
		if acct.ID == "" {
			continue
		}
		s.roster[acct.ID] = acct
		s.order = append(s.order, acct.ID)
		seen[acct.ID] = true

		cfg, ok := s.configs[acct.ID]
		if !ok {
			cfg = Config{Quantity: 1, Active: false, Mode: ModeManual}
			changed = true
		}
		if acct.Strategy != "" {
			if cfg.Active || cfg.Mode != ModeAuto {
				cfg.Active = false
				cfg.Mode = ModeAuto
				changed = true
			}
		} else if cfg.Mode != ModeManual {
			cfg.Mode = ModeManual
			changed = true
		}
		s.configs[acct.ID] = cfg
	}

	for id := range s.configs {
		if !seen[id] {
			delete(s.configs, id)
			changed = true
		}
	}

	if changed {
		s.persistConfigsLocked()
	}
}

// Views returns the roster with configs, in roster order.
func (s *Store) Views() []View {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]View, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, View{Account: s.roster[id], Config: s.configs[id]})
	}
	return out
}

// SetActive toggles an account's participation in dispatch.
func (s *Store) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.roster[id]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.Strategy != "" {
		return ErrStrategyBound
	}
	cfg := s.configs[id]
	if cfg.Active == active {
		return nil
	}
	cfg.Active = active
	s.configs[id] = cfg
	s.persistConfigsLocked()
	return nil
}

// SetQuantity sets an account's contract quantity. Fractional and
// sub-one values clamp to the nearest valid whole quantity.
func (s *Store) SetQuantity(id string, quantity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.roster[id]
	if !ok {
		return ErrUnknownAccount
	}
	if acct.Strategy != "" {
		return ErrStrategyBound
	}
	cfg := s.configs[id]
	cfg.Quantity = ClampQuantity(quantity)
	s.configs[id] = cfg
	s.persistConfigsLocked()
	return nil
}

// ClampQuantity normalizes a requested quantity to a whole number of at
// least one contract.
func ClampQuantity(q float64) int {
	n := int(math.Floor(q))
	if n < 1 {
		return 1
	}
	return n
}

// ActiveTargets returns the dispatch fan-out set: every active account
// with its configured quantity, in stable id order.
func (s *Store) ActiveTargets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Target
	for _, id := range s.order {
		cfg := s.configs[id]
		if !cfg.Active {
			continue
		}
		out = append(out, Target{
			AccountID: id,
			Nickname:  s.roster[id].Nickname,
			Quantity:  cfg.Quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Nickname resolves an account id to its display name, falling back to
// the id itself.
func (s *Store) Nickname(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.roster[id]; ok && acct.Nickname != "" {
		return acct.Nickname
	}
	return id
}

// SkipConfirm reports whether order confirmation prompts are suppressed.
func (s *Store) SkipConfirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipConfirm
}

// SetSkipConfirm flips the confirmation-suppression flag and persists it.
func (s *Store) SetSkipConfirm(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skipConfirm == enabled {
		return
	}
	s.skipConfirm = enabled
	if err := s.state.Save(skipConfirmDoc, skipConfirmState{Enabled: enabled}); err != nil {
		slog.Error("Failed to persist skip-confirm flag", "error", err)
	}
}

func (s *Store) persistConfigsLocked() {
	if err := s.state.Save(configsDoc, s.configs); err != nil {
		slog.Error("Failed to persist account configs", "error", err)
	}
}
