package overlay

import (
	"testing"

	"github.com/dgnsrekt/tv_trader/internal/coords"
	"github.com/dgnsrekt/tv_trader/internal/ticks"
)

func newTestTableForOverlay() *ticks.Table {
	return ticks.Parse("NQ:NQZ5:0.25,ES:ESZ5:0.25")
}

// Zoomed-in frame: 20 points over 800 px, 0.025 points per pixel.
func newTestSurface() *Surface {
	s := NewSurface(newTestTableForOverlay())
	s.SetChartSymbol("NQZ5")
	s.SetFrame(coords.Frame{
		PriceFrom:    20990,
		PriceTo:      21010,
		PaneHeight:   800,
		ChartWidth:   1600,
		CurrentPrice: 21005,
		Symbol:       "NQZ5",
	})
	return s
}

func yForPrice(t *testing.T, s *Surface, price float64) float64 {
	t.Helper()
	y, ok := s.frame.PriceToY(price)
	if !ok {
		t.Fatalf("price %.2f not mappable", price)
	}
	return y
}

func workingOrder(id string, price float64) Order {
	return Order{
		ID:        id,
		Symbol:    "NQZ5",
		Side:      SideBuy,
		Type:      "Limit",
		Price:     price,
		Quantity:  2,
		Status:    StatusWorking,
		AccountID: "acct-1",
	}
}

func TestApplyOrdersFiltersAndReconciles(t *testing.T) {
	s := newTestSurface()
	filled := workingOrder("ord-2", 21002)
	filled.Status = "Filled"
	other := workingOrder("ord-3", 21003)
	other.Symbol = "ESZ5"
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000), filled, other})

	if _, ok := s.OrderLine("ord-1"); !ok {
		t.Fatal("working order on the chart symbol should have a line")
	}
	if _, ok := s.OrderLine("ord-2"); ok {
		t.Fatal("non-working order should not have a line")
	}
	if _, ok := s.OrderLine("ord-3"); ok {
		t.Fatal("order on another symbol should not have a line")
	}

	// The filled order disappearing from the snapshot removes its line.
	s.ApplyOrders([]Order{workingOrder("ord-1", 21001)})
	line, _ := s.OrderLine("ord-1")
	if line.Price != 21001 {
		t.Fatalf("price = %.2f, want updated 21001", line.Price)
	}
}

func TestHoverMarksBracketLegs(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 20998)})
	s.ActivateBracket()
	// Place the entry at 21000: legs land at 21005 (TP) and 20995 (SL).
	s.PointerDown(yForPrice(t, s, 21000), PrimaryButton)

	s.PointerMove(yForPrice(t, s, 21005))

	hovered := map[string]bool{}
	for _, line := range s.Render().Lines {
		hovered[line.ID] = line.Hovered
	}
	if !hovered["bracket:tp"] {
		t.Fatal("TP leg under the pointer should render hovered")
	}
	if hovered["bracket:entry"] || hovered["bracket:sl"] || hovered["ord-1"] {
		t.Fatalf("only the TP leg should be hovered, got %v", hovered)
	}

	// Moving onto the working order line shifts the hover there.
	s.PointerMove(yForPrice(t, s, 20998))
	for _, line := range s.Render().Lines {
		switch line.ID {
		case "ord-1":
			if !line.Hovered {
				t.Fatal("order line under the pointer should render hovered")
			}
		case "bracket:tp":
			if line.Hovered {
				t.Fatal("TP leg hover should clear once the pointer leaves")
			}
		}
	}
}

func TestDragBelowThresholdIsNoOp(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	y := yForPrice(t, s, 21000)
	s.PointerDown(y, PrimaryButton)
	s.PointerMove(y + 1.5)
	if intent := s.PointerUp(y + 1.5); intent != nil {
		t.Fatalf("got intent %+v, want none for a sub-threshold drag", intent)
	}
}

func TestDragSnapBackToOriginIsNoOp(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	// 0.10 points is 4px here: past the threshold, but it snaps back to
	// the origin tick, so no modify request should be issued.
	y := yForPrice(t, s, 21000)
	target := yForPrice(t, s, 21000.10)
	s.PointerDown(y, PrimaryButton)
	s.PointerMove(target)
	if intent := s.PointerUp(target); intent != nil {
		t.Fatalf("got intent %+v, want none when snapped price equals origin", intent)
	}
}

func TestDragEmitsSnappedModifyIntent(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	y := yForPrice(t, s, 21000)
	target := yForPrice(t, s, 21000.30)
	s.PointerDown(y, PrimaryButton)
	s.PointerMove(target)
	intent := s.PointerUp(target)
	if intent == nil {
		t.Fatal("expected a modify intent")
	}
	if intent.OrderID != "ord-1" || intent.AccountID != "acct-1" {
		t.Fatalf("intent routing = %s/%s", intent.OrderID, intent.AccountID)
	}
	if intent.Price != 21000.25 {
		t.Fatalf("price = %.2f, want snapped 21000.25", intent.Price)
	}
}

func TestDragTargetRemovedMidDrag(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	y := yForPrice(t, s, 21000)
	s.PointerDown(y, PrimaryButton)
	s.PointerMove(y + 40)

	// Order fills while the drag is in flight.
	s.ApplyOrders(nil)
	if intent := s.PointerUp(y + 40); intent != nil {
		t.Fatalf("got intent %+v for an order that no longer exists", intent)
	}
	if s.Render().Capture {
		t.Fatal("capture should drop once the drag session is torn down")
	}
}

func TestPointerRoutingCapture(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	if s.Render().Capture {
		t.Fatal("idle surface should pass pointer events through")
	}

	y := yForPrice(t, s, 21000)
	s.PointerDown(y, PrimaryButton)
	if !s.Render().Capture {
		t.Fatal("engaged drag should capture the pointer")
	}
	s.PointerUp(y)
	if s.Render().Capture {
		t.Fatal("capture should end with the drag")
	}
}

func TestPointerDownPlacesBracketEntry(t *testing.T) {
	s := newTestSurface()
	s.ActivateBracket()

	if rs := s.Render(); !rs.Crosshair || !rs.Capture {
		t.Fatal("awaiting bracket click should capture with a crosshair")
	}

	s.PointerDown(yForPrice(t, s, 21000.10), PrimaryButton)
	symbol, side, entry, tp, sl, placed := s.BracketSnapshot()
	if !placed {
		t.Fatal("click should place the bracket")
	}
	if symbol != "NQ" {
		t.Fatalf("symbol = %q, want NQ", symbol)
	}
	if side != SideBuy {
		t.Fatalf("side = %s, want BUY (entry below market)", side)
	}
	if entry != 21000.00 {
		t.Fatalf("entry = %.2f, want snapped 21000.00", entry)
	}
	if tp != 21005.00 || sl != 20995.00 {
		t.Fatalf("legs = (%.2f, %.2f), want (21005.00, 20995.00)", tp, sl)
	}
}

func TestBracketLegDragMovesLegOnly(t *testing.T) {
	s := newTestSurface()
	s.ActivateBracket()
	s.PointerDown(yForPrice(t, s, 21000), PrimaryButton)
	_, _, entry, _, _, _ := s.BracketSnapshot()

	tpY := yForPrice(t, s, 21005)
	s.PointerDown(tpY, PrimaryButton)
	s.PointerMove(yForPrice(t, s, 21007))
	if intent := s.PointerUp(yForPrice(t, s, 21007)); intent != nil {
		t.Fatalf("bracket leg drags are local, got intent %+v", intent)
	}

	_, _, entryAfter, tp, _, _ := s.BracketSnapshot()
	if entryAfter != entry {
		t.Fatal("dragging tp must not move the entry")
	}
	if tp != 21007.00 {
		t.Fatalf("tp = %.2f, want 21007.00", tp)
	}
}

func TestRenderCullsOffScreenLinesExceptDragTarget(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{
		workingOrder("ord-in", 21000),
		workingOrder("ord-out", 20980),
	})

	rs := s.Render()
	if len(rs.Lines) != 1 || rs.Lines[0].ID != "ord-in" {
		t.Fatalf("rendered %d lines, want only the visible one", len(rs.Lines))
	}
}

func TestRenderDragGhostAndPreviewPrice(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})

	y := yForPrice(t, s, 21000)
	target := yForPrice(t, s, 21002.30)
	s.PointerDown(y, PrimaryButton)
	s.PointerMove(target)

	rs := s.Render()
	if len(rs.Lines) != 1 {
		t.Fatalf("rendered %d lines, want 1", len(rs.Lines))
	}
	line := rs.Lines[0]
	if !line.Dragging {
		t.Fatal("line should report dragging")
	}
	if line.GhostY == nil || *line.GhostY != y {
		t.Fatal("ghost should pin the original row")
	}
	if line.Price != 21002.25 {
		t.Fatalf("preview price = %.2f, want snapped 21002.25", line.Price)
	}
}

func TestRenderNudgesAxisTagAwayFromCurrentPrice(t *testing.T) {
	s := newTestSurface()
	// 21004.90 sits 4px from the current-price tag at 21005.
	s.ApplyOrders([]Order{workingOrder("ord-1", 21004.90)})

	rs := s.Render()
	if len(rs.Lines) != 1 {
		t.Fatalf("rendered %d lines, want 1", len(rs.Lines))
	}
	curY := yForPrice(t, s, 21005)
	tag := rs.Lines[0].AxisTagY
	if tag != curY+axisTagNudgePx {
		t.Fatalf("tag y = %.2f, want nudged to %.2f", tag, curY+axisTagNudgePx)
	}
	if rs.Lines[0].Y == tag {
		t.Fatal("the line itself must stay on its price row")
	}
}

func TestSymbolSwitchDropsState(t *testing.T) {
	s := newTestSurface()
	s.ApplyOrders([]Order{workingOrder("ord-1", 21000)})
	s.ActivateBracket()

	s.SetChartSymbol("ESZ5")
	if _, ok := s.OrderLine("ord-1"); ok {
		t.Fatal("lines from the previous symbol should be gone")
	}
	if _, _, _, _, _, placed := s.BracketSnapshot(); placed {
		t.Fatal("bracket should deactivate on symbol change")
	}
}
