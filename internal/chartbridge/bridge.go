// Package chartbridge attaches to a live TradingView tab over CDP and
// polls its chart API for the viewport, feeding coordinate frames to the
// overlay. The bridge is optional: without a browser the agent still
// accepts viewports over the HTTP API.
package chartbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/tv_trader/internal/config"
	"github.com/dgnsrekt/tv_trader/internal/coords"
)

// viewportJS reads the active chart's visible price range and pane
// geometry, returning a JSON envelope so eval failures are data, not
// exceptions.
const viewportJS = `(function() {
  try {
    var api = window.TradingViewApi;
    var chart = api && typeof api.activeChart === "function" ? api.activeChart() : null;
    if (!chart) return JSON.stringify({ok:false,error:"chart api unavailable"});

    var pane = chart.getPanes()[0];
    var scale = pane.getMainSourcePriceScale();
    var range = scale.priceRange();
    if (!range) return JSON.stringify({ok:false,error:"price range unavailable"});

    var symbol = "";
    try { symbol = chart.symbolExt().symbol || chart.symbol(); } catch(_) { symbol = chart.symbol(); }

    var last = 0;
    try {
      var series = chart.getSeries();
      if (series && typeof series.lastPrice === "function") last = series.lastPrice() || 0;
    } catch(_) {}

    return JSON.stringify({ok:true,data:{
      price_from: range.from(),
      price_to: range.to(),
      pane_height: pane.getHeight(),
      chart_width: chart.getTimeScale ? chart.getTimeScale().width() : 0,
      log_scale: scale.isLog ? !!scale.isLog() : false,
      symbol: symbol,
      last_price: last
    }});
  } catch (e) {
    return JSON.stringify({ok:false,error:String(e && e.message || e)});
  }
})()`

type viewportEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Data  struct {
		PriceFrom  float64 `json:"price_from"`
		PriceTo    float64 `json:"price_to"`
		PaneHeight float64 `json:"pane_height"`
		ChartWidth float64 `json:"chart_width"`
		LogScale   bool    `json:"log_scale"`
		Symbol     string  `json:"symbol"`
		LastPrice  float64 `json:"last_price"`
	} `json:"data"`
}

// Bridge polls one TradingView tab for viewport frames.
type Bridge struct {
	cfg     *config.Config
	onFrame func(coords.Frame)

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// New creates a Bridge that delivers each polled frame to onFrame.
func New(cfg *config.Config, onFrame func(coords.Frame)) *Bridge {
	return &Bridge{cfg: cfg, onFrame: onFrame}
}

// Run connects to the browser, attaches to the first matching tab, and
// polls until ctx ends. A lost tab triggers a re-attach rather than an
// exit.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.close()

	ticker := time.NewTicker(time.Duration(b.cfg.ViewportPollMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		if b.tabCtx == nil {
			if err := b.connect(ctx); err != nil {
				slog.Warn("Chart bridge connect failed, retrying", "error", err)
				select {
				case <-time.After(5 * time.Second):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		select {
		case <-ticker.C:
			frame, err := b.poll(ctx)
			if err != nil {
				slog.Debug("Viewport poll failed", "error", err)
				b.detach()
				continue
			}
			b.onFrame(frame)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) connect(ctx context.Context) error {
	cdpURL := b.cfg.CDPURL()
	slog.Info("Connecting to Chromium", "url", cdpURL)

	b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(b.allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		b.close()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		b.close()
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	var chartTarget *target.Info
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if strings.Contains(t.URL, b.cfg.TabURLFilter) {
			chartTarget = t
			break
		}
	}
	if chartTarget == nil {
		b.close()
		return fmt.Errorf("no tabs found matching CHART_BRIDGE_TAB_URL_FILTER=%q", b.cfg.TabURLFilter)
	}

	b.tabCtx, b.tabCancel = chromedp.NewContext(b.allocCtx, chromedp.WithTargetID(chartTarget.TargetID))
	slog.Info("Attached to chart tab", "target_id", chartTarget.TargetID, "url", chartTarget.URL)
	return nil
}

func (b *Bridge) poll(ctx context.Context) (coords.Frame, error) {
	evalCtx, cancel := context.WithTimeout(b.tabCtx, 5*time.Second)
	defer cancel()

	var raw string
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(viewportJS, &raw)); err != nil {
		return coords.Frame{}, fmt.Errorf("chartbridge: evaluate: %w", err)
	}

	var env viewportEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return coords.Frame{}, fmt.Errorf("chartbridge: decode envelope: %w", err)
	}
	if !env.OK {
		return coords.Frame{}, fmt.Errorf("chartbridge: %s", env.Error)
	}

	mode := coords.ScaleLinear
	if env.Data.LogScale {
		mode = coords.ScaleLog
	}
	return coords.Frame{
		PriceFrom:     env.Data.PriceFrom,
		PriceTo:       env.Data.PriceTo,
		PaneHeight:    env.Data.PaneHeight,
		ChartWidth:    env.Data.ChartWidth,
		ToolbarHeight: coords.DefaultToolbarHeight,
		Mode:          mode,
		CurrentPrice:  env.Data.LastPrice,
		Symbol:        env.Data.Symbol,
	}, nil
}

func (b *Bridge) detach() {
	if b.tabCancel != nil {
		b.tabCancel()
	}
	b.tabCtx, b.tabCancel = nil, nil
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.allocCtx, b.allocCancel = nil, nil
}

func (b *Bridge) close() {
	b.detach()
	slog.Info("Chart bridge closed")
}
