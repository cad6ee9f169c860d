package coords

import "math"

// ScaleMode identifies how the host chart maps prices onto the pane.
type ScaleMode int

const (
	ScaleLinear ScaleMode = 0
	ScaleLog    ScaleMode = 1
)

// DefaultToolbarHeight is the vertical offset of the chart pane below the
// host window's toolbar.
const DefaultToolbarHeight = 38

// Frame is one snapshot of the host chart's price/pixel geometry. It is an
// immutable value recomputed whenever the chart viewport changes (pan, zoom,
// resize, scale-mode switch); the overlay only reads it.
type Frame struct {
	PriceFrom     float64   `json:"price_from"`
	PriceTo       float64   `json:"price_to"`
	PaneHeight    float64   `json:"pane_height"`
	ChartWidth    float64   `json:"chart_width"`
	ToolbarHeight float64   `json:"toolbar_height"`
	Mode          ScaleMode `json:"mode"`
	CurrentPrice  float64   `json:"current_price"`
	Symbol        string    `json:"symbol"`
}

// Ready reports whether the frame describes a usable viewport. Until the
// first real frame arrives the overlay renders nothing.
func (f Frame) Ready() bool {
	return f.PaneHeight > 0 && f.PriceTo != f.PriceFrom
}

func (f Frame) logUsable() bool {
	return f.Mode == ScaleLog && f.PriceFrom > 0 && f.PriceTo > 0
}

// PriceToY converts a price to a pixel row within the pane. The second
// return is false when the frame cannot express the conversion.
func (f Frame) PriceToY(price float64) (float64, bool) {
	if !f.Ready() {
		return 0, false
	}
	if f.logUsable() {
		if price <= 0 {
			return 0, false
		}
		logFrom := math.Log(f.PriceFrom)
		logTo := math.Log(f.PriceTo)
		if logTo == logFrom {
			return 0, false
		}
		return f.PaneHeight * (1 - (math.Log(price)-logFrom)/(logTo-logFrom)), true
	}
	return f.PaneHeight * (1 - (price-f.PriceFrom)/(f.PriceTo-f.PriceFrom)), true
}

// YToPrice converts a pixel row within the pane back to a price.
func (f Frame) YToPrice(y float64) (float64, bool) {
	if !f.Ready() {
		return 0, false
	}
	if f.logUsable() {
		logFrom := math.Log(f.PriceFrom)
		logTo := math.Log(f.PriceTo)
		return math.Exp(logFrom + (1-y/f.PaneHeight)*(logTo-logFrom)), true
	}
	return f.PriceFrom + (1-y/f.PaneHeight)*(f.PriceTo-f.PriceFrom), true
}

// IsPriceVisible reports whether a price falls inside the visible range.
func (f Frame) IsPriceVisible(price float64) bool {
	if !f.Ready() {
		return false
	}
	lo, hi := f.PriceFrom, f.PriceTo
	if lo > hi {
		lo, hi = hi, lo
	}
	return price >= lo && price <= hi
}
