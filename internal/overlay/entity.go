package overlay

import "fmt"

// Kind discriminates the line entity variants rendered on the overlay.
type Kind string

const (
	KindPosition     Kind = "position"
	KindOrder        Kind = "order"
	KindBracketEntry Kind = "bracket_entry"
	KindBracketTP    Kind = "bracket_tp"
	KindBracketSL    Kind = "bracket_sl"
)

// Side is a trade direction. Positions use Long/Short, orders Buy/Sell.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite flips a side within its pair.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	}
	return s
}

// IsLongish reports whether the side maps to the long/buy color.
func (s Side) IsLongish() bool {
	return s == SideBuy || s == SideLong
}

// Line colors match the host chart's long/short palette; bracket legs use
// their own role colors.
const (
	colorLong         = "#26a69a"
	colorShort        = "#ef5350"
	colorBracketEntry = "#7c3aed"
	colorBracketTP    = "#4caf50"
	colorBracketSL    = "#f44336"
)

// orderTypeShort maps broker order types to the compact label form.
var orderTypeShort = map[string]string{
	"Market":     "MKT",
	"Limit":      "LMT",
	"Stop":       "STP",
	"StopLimit":  "STP LMT",
	"MARKET":     "MKT",
	"LIMIT":      "LMT",
	"STOP":       "STP",
	"STOP_LIMIT": "STP LMT",
}

// ShortOrderType maps a broker order type to its compact label form,
// passing unknown types through unchanged.
func ShortOrderType(t string) string {
	if s, ok := orderTypeShort[t]; ok {
		return s
	}
	return t
}

// Position is one live position as fed from the brokerage stream.
type Position struct {
	ID            string  `json:"position_id"`
	AccountID     string  `json:"account_id"`
	AccountLabel  string  `json:"account_label"`
	Symbol        string  `json:"symbol"`
	Long          bool    `json:"long"`
	Quantity      int     `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Order is one live order as fed from the brokerage stream. Only orders in
// Working status render a line.
type Order struct {
	ID           string  `json:"order_id"`
	AccountID    string  `json:"account_id"`
	AccountLabel string  `json:"account_label"`
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
}

// StatusWorking is the order status that keeps a line on the chart.
const StatusWorking = "Working"

// Line is one overlay entity. Transient interaction state (hover, drag
// offset) lives on the Surface, keyed by line id, because bracket legs
// are materialized fresh on every render pass.
type Line struct {
	ID           string
	Kind         Kind
	Symbol       string
	Price        float64
	Side         Side
	Quantity     int
	OrderType    string
	AccountID    string
	AccountLabel string
	PnL          float64
}

// Color returns the render color for the line's kind and side.
func (l *Line) Color() string {
	switch l.Kind {
	case KindBracketEntry:
		return colorBracketEntry
	case KindBracketTP:
		return colorBracketTP
	case KindBracketSL:
		return colorBracketSL
	}
	if l.Side.IsLongish() {
		return colorLong
	}
	return colorShort
}

// Dashed reports whether the line renders dashed (stop/TP/SL semantics)
// rather than solid (resting position / limit semantics).
func (l *Line) Dashed() bool {
	switch l.Kind {
	case KindBracketTP, KindBracketSL:
		return true
	case KindOrder:
		short := ShortOrderType(l.OrderType)
		return short == "STP" || short == "STP LMT"
	}
	return false
}

// Label builds the pill text for the line.
func (l *Line) Label() string {
	switch l.Kind {
	case KindPosition:
		return fmt.Sprintf("%s %d %s", l.Side, l.Quantity, l.Symbol)
	case KindOrder:
		base := fmt.Sprintf("%s %s × %d", l.Side, ShortOrderType(l.OrderType), l.Quantity)
		if l.AccountLabel != "" {
			return base + " [" + l.AccountLabel + "]"
		}
		return base
	case KindBracketEntry:
		return string(l.Side) + " LMT"
	case KindBracketTP:
		return "TP"
	case KindBracketSL:
		return "SL"
	}
	return string(l.Kind)
}

// Controls lists the role-specific actions the line exposes.
func (l *Line) Controls() []string {
	switch l.Kind {
	case KindPosition:
		return []string{"close", "reverse", "protect"}
	case KindOrder:
		return []string{"cancel"}
	case KindBracketEntry:
		return []string{"toggle_side", "submit", "cancel"}
	case KindBracketTP, KindBracketSL:
		return []string{"cancel"}
	}
	return nil
}
