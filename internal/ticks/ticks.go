package ticks

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Table maps display tickers to contract tickers and tick sizes. Symbols not
// present fall back to a 0.01 tick so formatting and snapping always work.
type Table struct {
	specs map[string]Spec
}

// Spec is one symbol's contract mapping and minimum price increment.
type Spec struct {
	Display  string
	Contract string
	Tick     decimal.Decimal
}

var defaultTick = decimal.RequireFromString("0.01")

// contractCodeRe matches trailing futures month+year codes, e.g. NQH6, ESZ25.
var contractCodeRe = regexp.MustCompile(`[A-Z]\d{1,2}$`)

// Parse builds a Table from a spec string of the form
// "NQ:NQZ5:0.25,ES:ESZ5:0.25,CL:CLF6:0.01". The tick field is optional and
// defaults to 0.01. Malformed entries are skipped.
func Parse(raw string) *Table {
	t := &Table{specs: make(map[string]Spec)}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		spec := Spec{
			Display:  strings.ToUpper(parts[0]),
			Contract: strings.ToUpper(parts[1]),
			Tick:     defaultTick,
		}
		if len(parts) >= 3 {
			if tick, err := decimal.NewFromString(parts[2]); err == nil && tick.IsPositive() {
				spec.Tick = tick
			}
		}
		t.specs[spec.Display] = spec
	}
	return t
}

// TickSize returns the minimum price increment for a display symbol.
func (t *Table) TickSize(symbol string) float64 {
	f, _ := t.tick(symbol).Float64()
	return f
}

func (t *Table) tick(symbol string) decimal.Decimal {
	if spec, ok := t.specs[strings.ToUpper(symbol)]; ok {
		return spec.Tick
	}
	return defaultTick
}

// RoundToTick snaps a price to the nearest multiple of the symbol's tick.
func (t *Table) RoundToTick(price float64, symbol string) float64 {
	tick := t.tick(symbol)
	p := decimal.NewFromFloat(price)
	snapped := p.Div(tick).Round(0).Mul(tick)
	f, _ := snapped.Float64()
	return f
}

// FormatPrice renders a price with the decimal places implied by the
// symbol's tick size (tick 0.25 -> "21000.25", tick 0.0001 -> "1.2345").
func (t *Table) FormatPrice(price float64, symbol string) string {
	tick := t.tick(symbol)
	places := int32(0)
	if tick.Exponent() < 0 {
		places = -tick.Exponent()
	}
	p := t.RoundToTick(price, symbol)
	return decimal.NewFromFloat(p).StringFixed(places)
}

// ContractTicker converts a display ticker to its tradable contract symbol.
// Unknown symbols pass through unchanged.
func (t *Table) ContractTicker(display string) string {
	if spec, ok := t.specs[strings.ToUpper(display)]; ok {
		return spec.Contract
	}
	return display
}

// DisplayTicker converts a full contract symbol back to its display ticker.
func (t *Table) DisplayTicker(contract string) string {
	upper := strings.ToUpper(contract)
	for _, spec := range t.specs {
		if spec.Contract == upper {
			return spec.Display
		}
	}
	return contract
}

// NormalizeSymbol reduces a feed symbol to its base display ticker. The feed
// reports full contracts like "NQH6"; the chart shows "NQ".
func (t *Table) NormalizeSymbol(symbol string) string {
	if symbol == "" {
		return ""
	}
	if display := t.DisplayTicker(symbol); display != symbol {
		return display
	}
	return contractCodeRe.ReplaceAllString(strings.ToUpper(symbol), "")
}

// Matches reports whether a feed symbol belongs on a chart showing
// chartSymbol, comparing both the normalized base and the raw contract.
func (t *Table) Matches(symbol, chartSymbol string) bool {
	if symbol == "" || chartSymbol == "" {
		return false
	}
	chart := strings.ToUpper(chartSymbol)
	return t.NormalizeSymbol(symbol) == chart || strings.ToUpper(symbol) == chart
}
