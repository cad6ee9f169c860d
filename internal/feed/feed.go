// Package feed maintains the WebSocket subscription to the broker
// gateway's state stream: account roster, positions, working orders, and
// last-trade quotes.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/tv_trader/internal/accounts"
	"github.com/dgnsrekt/tv_trader/internal/overlay"
)

const (
	reconnectMin = 500 * time.Millisecond
	reconnectMax = 30 * time.Second
)

// Quote is a last-trade update for one symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
}

// Handlers receives decoded stream messages. Each message type carries a
// full snapshot, not a delta, so a missed message is repaired by the next
// one. Nil handlers skip their message type.
type Handlers struct {
	Accounts  func([]accounts.Account)
	Positions func([]overlay.Position)
	Orders    func([]overlay.Order)
	Quote     func(Quote)
}

// envelope is the gateway's stream framing.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client owns one gateway stream connection and reconnects with backoff
// until its context ends.
type Client struct {
	url      string
	handlers Handlers

	mu   sync.Mutex
	conn net.Conn
}

// NewClient builds a stream client for the given ws:// or wss:// URL.
func NewClient(url string, handlers Handlers) *Client {
	return &Client{url: url, handlers: handlers}
}

// Run connects and pumps messages until ctx is cancelled, reconnecting
// with exponential backoff on any failure. It only returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Feed disconnected, reconnecting",
			"url", c.url,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("feed: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Unblock the synchronous read when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Info("Feed connected", "url", c.url)
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("feed: read: %w", err)
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Debug("Feed dropped undecodable frame", "error", err)
		return
	}

	switch env.Type {
	case "accounts":
		if c.handlers.Accounts == nil {
			return
		}
		var roster []accounts.Account
		if err := json.Unmarshal(env.Data, &roster); err != nil {
			slog.Debug("Feed dropped accounts frame", "error", err)
			return
		}
		c.handlers.Accounts(roster)
	case "positions":
		if c.handlers.Positions == nil {
			return
		}
		var positions []overlay.Position
		if err := json.Unmarshal(env.Data, &positions); err != nil {
			slog.Debug("Feed dropped positions frame", "error", err)
			return
		}
		c.handlers.Positions(positions)
	case "orders":
		if c.handlers.Orders == nil {
			return
		}
		var orders []overlay.Order
		if err := json.Unmarshal(env.Data, &orders); err != nil {
			slog.Debug("Feed dropped orders frame", "error", err)
			return
		}
		c.handlers.Orders(orders)
	case "quote":
		if c.handlers.Quote == nil {
			return
		}
		var q Quote
		if err := json.Unmarshal(env.Data, &q); err != nil {
			slog.Debug("Feed dropped quote frame", "error", err)
			return
		}
		c.handlers.Quote(q)
	default:
		slog.Debug("Feed ignored unknown frame type", "type", env.Type)
	}
}
