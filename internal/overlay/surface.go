package overlay

import (
	"sync"

	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/ticks"
)

// axisTagNudgePx: when a line's axis price tag would sit closer than this
// to the chart's own current-price tag, it slides away by the same amount.
const axisTagNudgePx = 18

// Pixel rows far outside the pane are dropped entirely rather than drawn.
const (
	cullAboveY = -200
	cullBelowY = 5000
)

// ModifyIntent is emitted when a drag on an order line resolves past the
// movement threshold with a changed snapped price.
type ModifyIntent struct {
	OrderID   string  `json:"order_id"`
	AccountID string  `json:"account_id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
}

// RenderedLine is one line entity positioned for drawing.
type RenderedLine struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Side         Side     `json:"side"`
	Label        string   `json:"label"`
	Y            float64  `json:"y"`
	GhostY       *float64 `json:"ghost_y,omitempty"`
	Price        float64  `json:"price"`
	DisplayPrice string   `json:"display_price"`
	AxisTagY     float64  `json:"axis_tag_y"`
	Color        string   `json:"color"`
	Dashed       bool     `json:"dashed"`
	Dragging     bool     `json:"dragging"`
	Hovered      bool     `json:"hovered"`
	Quantity     int      `json:"quantity,omitempty"`
	AccountLabel string   `json:"account_label,omitempty"`
	PnL          float64  `json:"pnl,omitempty"`
	Controls     []string `json:"controls,omitempty"`
}

// RenderState is the full overlay output for one pass.
type RenderState struct {
	Ready         bool           `json:"ready"`
	Capture       bool           `json:"capture"`
	Crosshair     bool           `json:"crosshair"`
	ToolbarOffset float64        `json:"toolbar_offset"`
	PaneHeight    float64        `json:"pane_height"`
	ChartWidth    float64        `json:"chart_width"`
	ChartSymbol   string         `json:"chart_symbol"`
	Lines         []RenderedLine `json:"lines"`
}

// Surface owns the overlay's line entities and arbitrates pointer routing.
// All state mutation is serialized behind one mutex; nothing here blocks on
// network I/O.
type Surface struct {
	mu sync.Mutex

	table       *ticks.Table
	frame       coords.Frame
	chartSymbol string

	positions map[string]*Line
	orders    map[string]*Line
	posOrder  []string
	ordOrder  []string

	// hovered tracks pointer hover by line id so bracket legs, which are
	// materialized fresh each render, keep their hover state.
	hovered map[string]bool

	bracket *Bracket
	drag    DragController
}

// NewSurface creates an empty surface bound to a tick table.
func NewSurface(table *ticks.Table) *Surface {
	return &Surface{
		table:     table,
		positions: make(map[string]*Line),
		orders:    make(map[string]*Line),
		hovered:   make(map[string]bool),
		bracket:   NewBracket(table),
	}
}

// SetFrame installs a fresh coordinate frame. Frames arrive on every host
// viewport change; the surface only reads them.
func (s *Surface) SetFrame(f coords.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = f
	if f.Symbol != "" {
		s.setChartSymbolLocked(s.table.NormalizeSymbol(f.Symbol))
	}
}

// SetChartSymbol switches the chart symbol, dropping all lines (the feed
// repopulates matching ones) and any in-flight placement or drag.
func (s *Surface) SetChartSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setChartSymbolLocked(s.table.NormalizeSymbol(symbol))
}

func (s *Surface) setChartSymbolLocked(symbol string) {
	if symbol == s.chartSymbol {
		return
	}
	s.chartSymbol = symbol
	s.positions = make(map[string]*Line)
	s.orders = make(map[string]*Line)
	s.posOrder = nil
	s.ordOrder = nil
	s.hovered = make(map[string]bool)
	s.bracket.Deactivate()
	s.drag.Cancel()
}

// SetCurrentPrice records the last trade for the chart symbol, which
// drives bracket side inference and the axis tag nudge.
func (s *Surface) SetCurrentPrice(symbol string, last float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.table.Matches(symbol, s.chartSymbol) {
		return
	}
	s.frame.CurrentPrice = last
}

// ChartSymbol returns the normalized symbol the overlay is tracking.
func (s *Surface) ChartSymbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chartSymbol
}

// ApplyPositions reconciles the position line set against a feed snapshot:
// new positions gain a line, updated ones move, absent ones are removed.
func (s *Surface) ApplyPositions(positions []Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(positions))
	var order []string
	for _, p := range positions {
		if p.Quantity <= 0 || !s.table.Matches(p.Symbol, s.chartSymbol) {
			continue
		}
		seen[p.ID] = true
		order = append(order, p.ID)
		side := SideShort
		if p.Long {
			side = SideLong
		}
		line := s.positions[p.ID]
		if line == nil {
			line = &Line{ID: p.ID, Kind: KindPosition}
			s.positions[p.ID] = line
		}
		line.Symbol = s.table.NormalizeSymbol(p.Symbol)
		line.Price = p.AvgPrice
		line.Side = side
		line.Quantity = p.Quantity
		line.AccountID = p.AccountID
		line.AccountLabel = p.AccountLabel
		line.PnL = p.UnrealizedPnL
	}
	for id := range s.positions {
		if !seen[id] {
			delete(s.positions, id)
		}
	}
	s.posOrder = order
}

// ApplyOrders reconciles the order line set. Only Working orders for the
// chart symbol keep a line; a dragged order that disappears from the feed
// tears its drag session down with no intent emitted.
func (s *Surface) ApplyOrders(orders []Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(orders))
	var order []string
	for _, o := range orders {
		if o.ID == "" || o.Status != StatusWorking || !s.table.Matches(o.Symbol, s.chartSymbol) {
			continue
		}
		seen[o.ID] = true
		order = append(order, o.ID)
		line := s.orders[o.ID]
		if line == nil {
			line = &Line{ID: o.ID, Kind: KindOrder}
			s.orders[o.ID] = line
		}
		line.Symbol = s.table.NormalizeSymbol(o.Symbol)
		line.Price = o.Price
		line.Side = o.Side
		line.OrderType = o.Type
		line.Quantity = o.Quantity
		line.AccountID = o.AccountID
		line.AccountLabel = o.AccountLabel
	}
	for id := range s.orders {
		if !seen[id] {
			if s.drag.Active() && s.drag.TargetID() == id {
				s.drag.Cancel()
			}
			delete(s.orders, id)
		}
	}
	s.ordOrder = order
}

// Bracket operations. The bracket shares the surface lock so leg state
// never tears against a concurrent render.

// ActivateBracket arms bracket placement for the current chart symbol.
func (s *Surface) ActivateBracket() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bracket.Activate(s.chartSymbol)
}

// CancelBracket removes the whole placement regardless of which leg asked.
func (s *Surface) CancelBracket() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bracket.Deactivate()
}

// ToggleBracketSide flips the placement between BUY and SELL.
func (s *Surface) ToggleBracketSide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bracket.ToggleSide()
}

// BracketSnapshot returns the current placement values for submission.
func (s *Surface) BracketSnapshot() (symbol string, side Side, entry, tp, sl float64, placed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bracket
	return b.Symbol(), b.Side(), b.Entry(), b.TP(), b.SL(), b.Placed()
}

// PointerDown routes a press: while a bracket awaits its first click the
// press places the entry; otherwise it hit-tests draggable lines and arms
// a drag session. y is relative to the overlay top.
func (s *Surface) PointerDown(y float64, button int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.frame.Ready() || button != PrimaryButton {
		return
	}

	if s.bracket.AwaitingClick() {
		price, ok := s.frame.YToPrice(y)
		if !ok || price <= 0 {
			return
		}
		market := s.frame.CurrentPrice
		if market == 0 {
			// Approximate the market from the pane midpoint when the
			// chart has not reported a last price yet.
			market, _ = s.frame.YToPrice(s.frame.PaneHeight / 2)
		}
		s.bracket.PlaceEntry(price, market)
		return
	}

	if target, lineY := s.hitTestLocked(y); target != nil {
		s.drag.Engage(target.ID, y, lineY, target.Price, button)
	}
}

// PointerMove feeds motion into the active drag session, or refreshes
// hover state when idle.
func (s *Surface) PointerMove(y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drag.Active() {
		s.drag.Move(y)
		return
	}
	s.hovered = make(map[string]bool)
	for _, line := range s.draggablesLocked() {
		if lineY, ok := s.frame.PriceToY(line.Price); ok && HitTest(y, lineY) {
			s.hovered[line.ID] = true
		}
	}
}

// PointerUp resolves the active drag. An order-line drag past the
// threshold with a changed snapped price yields exactly one ModifyIntent;
// bracket legs mutate placement state locally; anything else is a no-op.
func (s *Surface) PointerUp(y float64) *ModifyIntent {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.drag.Release(y)
	if !ok || !res.Moved {
		return nil
	}
	raw, ok := s.frame.YToPrice(res.FinalY)
	if !ok {
		return nil
	}

	switch res.LineID {
	case "bracket:entry":
		s.bracket.UpdateEntry(raw)
		return nil
	case "bracket:tp":
		s.bracket.UpdateTP(raw)
		return nil
	case "bracket:sl":
		s.bracket.UpdateSL(raw)
		return nil
	}

	line := s.orders[res.LineID]
	if line == nil {
		return nil
	}
	snapped := s.table.RoundToTick(raw, line.Symbol)
	if snapped == res.OriginPrice {
		return nil
	}
	return &ModifyIntent{
		OrderID:   line.ID,
		AccountID: line.AccountID,
		Symbol:    line.Symbol,
		Price:     snapped,
	}
}

// OrderLine looks up a live order line by id.
func (s *Surface) OrderLine(id string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.orders[id]; l != nil {
		return *l, true
	}
	return Line{}, false
}

// PositionLine looks up a live position line by id.
func (s *Surface) PositionLine(id string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.positions[id]; l != nil {
		return *l, true
	}
	return Line{}, false
}

// Reset tears down all transient interaction state (surface teardown).
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
	s.bracket.Deactivate()
	s.hovered = make(map[string]bool)
}

// draggablesLocked returns the lines that accept pointer engagement:
// working orders and bracket legs. Position lines expose buttons only.
func (s *Surface) draggablesLocked() []*Line {
	var out []*Line
	for _, id := range s.ordOrder {
		if l := s.orders[id]; l != nil {
			out = append(out, l)
		}
	}
	out = append(out, s.bracket.Lines()...)
	return out
}

// hitTestLocked finds the draggable line whose grab band contains y,
// preferring the closest when bands overlap so the drag target is unique.
func (s *Surface) hitTestLocked(y float64) (*Line, float64) {
	var best *Line
	var bestY, bestDist float64
	for _, line := range s.draggablesLocked() {
		lineY, ok := s.frame.PriceToY(line.Price)
		if !ok || !HitTest(y, lineY) {
			continue
		}
		dist := y - lineY
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestY, bestDist = line, lineY, dist
		}
	}
	return best, bestY
}

// Render produces the drawable state for the current frame. No output is
// produced until the coordinate frame is ready.
func (s *Surface) Render() RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := RenderState{
		Ready:         s.frame.Ready(),
		Capture:       s.drag.Active() || s.bracket.AwaitingClick(),
		Crosshair:     s.bracket.AwaitingClick(),
		ToolbarOffset: s.frame.ToolbarHeight,
		PaneHeight:    s.frame.PaneHeight,
		ChartWidth:    s.frame.ChartWidth,
		ChartSymbol:   s.chartSymbol,
	}
	if !state.Ready {
		return state
	}

	curY := -1.0
	if s.frame.CurrentPrice > 0 {
		if y, ok := s.frame.PriceToY(s.frame.CurrentPrice); ok {
			curY = y
		}
	}

	for _, id := range s.posOrder {
		if line := s.positions[id]; line != nil {
			state.appendLine(s, line, curY)
		}
	}
	for _, id := range s.ordOrder {
		if line := s.orders[id]; line != nil {
			state.appendLine(s, line, curY)
		}
	}
	for _, line := range s.bracket.Lines() {
		state.appendLine(s, line, curY)
	}
	return state
}

func (rs *RenderState) appendLine(s *Surface, line *Line, curY float64) {
	y, ok := s.frame.PriceToY(line.Price)
	if !ok {
		return
	}

	dragging := s.drag.Active() && s.drag.TargetID() == line.ID
	visible := s.frame.IsPriceVisible(line.Price)
	if !visible && !dragging {
		return
	}
	if !dragging && (y < cullAboveY || y > cullBelowY) {
		return
	}

	price := line.Price
	effY := y
	var ghost *float64
	if dragging {
		effY = clamp(s.drag.OriginY()+s.drag.OffsetY(), 0, s.frame.PaneHeight)
		if raw, ok := s.frame.YToPrice(effY); ok {
			price = s.table.RoundToTick(raw, line.Symbol)
		}
		origin := s.drag.OriginY()
		ghost = &origin
	}

	rs.Lines = append(rs.Lines, RenderedLine{
		ID:           line.ID,
		Kind:         line.Kind,
		Side:         line.Side,
		Label:        line.Label(),
		Y:            effY,
		GhostY:       ghost,
		Price:        price,
		DisplayPrice: s.table.FormatPrice(price, line.Symbol),
		AxisTagY:     nudgeAxisTag(effY, curY),
		Color:        line.Color(),
		Dashed:       line.Dashed(),
		Dragging:     dragging,
		Hovered:      s.hovered[line.ID],
		Quantity:     line.Quantity,
		AccountLabel: line.AccountLabel,
		PnL:          line.PnL,
		Controls:     line.Controls(),
	})
}

// nudgeAxisTag slides a line's axis price tag away from the chart's own
// current-price tag when the two would overlap, in whichever direction
// increases separation.
func nudgeAxisTag(tagY, currentPriceY float64) float64 {
	if currentPriceY < 0 {
		return tagY
	}
	diff := tagY - currentPriceY
	if diff > -axisTagNudgePx && diff < axisTagNudgePx {
		if diff < 0 {
			return currentPriceY - axisTagNudgePx
		}
		return currentPriceY + axisTagNudgePx
	}
	return tagY
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
