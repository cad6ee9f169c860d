package overlay

import "github.com/dgnsrekt/tv_trader/internal/ticks"

// DefaultBracketTickOffset is how many ticks the TP and SL legs start away
// from the entry when a bracket is first placed.
const DefaultBracketTickOffset = 20

// BracketPhase tracks the placement flow: activated but waiting for the
// user's first click, or placed with all three legs on the chart.
type BracketPhase int

const (
	BracketInactive BracketPhase = iota
	BracketAwaitingClick
	BracketPlaced
)

// Bracket is a coupled trio of entry, take-profit and stop-loss prices
// sharing one side and symbol. The three legs are created, moved and
// destroyed as a single unit; cancelling any leg removes all three.
type Bracket struct {
	table *ticks.Table

	phase  BracketPhase
	symbol string
	side   Side
	entry  float64
	tp     float64
	sl     float64

	// Leg offsets relative to entry, preserved while the entry is dragged.
	tpOffset float64
	slOffset float64
}

// NewBracket creates an inactive bracket bound to a tick table.
func NewBracket(table *ticks.Table) *Bracket {
	return &Bracket{table: table}
}

// Activate puts the bracket into awaiting-click mode for a symbol. Any
// prior placement is discarded.
func (b *Bracket) Activate(symbol string) {
	b.phase = BracketAwaitingClick
	b.symbol = symbol
	b.side = ""
	b.entry, b.tp, b.sl = 0, 0, 0
	b.tpOffset, b.slOffset = 0, 0
}

// Deactivate removes the whole placement. Invoking cancel on any leg lands
// here, so one cancel destroys all three legs.
func (b *Bracket) Deactivate() {
	*b = Bracket{table: b.table}
}

func (b *Bracket) Phase() BracketPhase { return b.phase }
func (b *Bracket) Placed() bool        { return b.phase == BracketPlaced }
func (b *Bracket) AwaitingClick() bool { return b.phase == BracketAwaitingClick }

func (b *Bracket) Symbol() string { return b.symbol }
func (b *Bracket) Side() Side     { return b.side }
func (b *Bracket) Entry() float64 { return b.entry }
func (b *Bracket) TP() float64    { return b.tp }
func (b *Bracket) SL() float64    { return b.sl }

// PlaceEntry pins the entry at the clicked price and derives the side from
// the market: an entry below market is a BUY limit, above is a SELL limit.
// TP and SL start DefaultBracketTickOffset ticks away on the winning and
// losing side respectively.
func (b *Bracket) PlaceEntry(price, marketPrice float64) bool {
	if b.phase != BracketAwaitingClick || marketPrice <= 0 {
		return false
	}
	snapped := b.table.RoundToTick(price, b.symbol)
	offset := b.table.TickSize(b.symbol) * DefaultBracketTickOffset

	side := SideSell
	if snapped < marketPrice {
		side = SideBuy
	}
	tp := snapped + offset
	sl := snapped - offset
	if side == SideSell {
		tp, sl = sl, tp
	}

	b.side = side
	b.entry = snapped
	b.tp = b.table.RoundToTick(tp, b.symbol)
	b.sl = b.table.RoundToTick(sl, b.symbol)
	b.tpOffset = b.tp - snapped
	b.slOffset = b.sl - snapped
	b.phase = BracketPlaced
	return true
}

// UpdateEntry moves the entry leg; TP and SL follow at their recorded
// offsets so the bracket's shape is preserved.
func (b *Bracket) UpdateEntry(price float64) {
	if b.phase != BracketPlaced {
		return
	}
	snapped := b.table.RoundToTick(price, b.symbol)
	b.entry = snapped
	b.tp = b.table.RoundToTick(snapped+b.tpOffset, b.symbol)
	b.sl = b.table.RoundToTick(snapped+b.slOffset, b.symbol)
}

// UpdateTP moves only the take-profit leg and re-records its offset.
func (b *Bracket) UpdateTP(price float64) {
	if b.phase != BracketPlaced {
		return
	}
	b.tp = b.table.RoundToTick(price, b.symbol)
	b.tpOffset = b.tp - b.entry
}

// UpdateSL moves only the stop-loss leg and re-records its offset.
func (b *Bracket) UpdateSL(price float64) {
	if b.phase != BracketPlaced {
		return
	}
	b.sl = b.table.RoundToTick(price, b.symbol)
	b.slOffset = b.sl - b.entry
}

// ToggleSide flips the whole placement between BUY and SELL, swapping the
// TP and SL legs (and their offsets) so the winning side stays the winning
// side.
func (b *Bracket) ToggleSide() {
	if b.phase != BracketPlaced {
		return
	}
	b.side = b.side.Opposite()
	b.tp, b.sl = b.sl, b.tp
	b.tpOffset, b.slOffset = b.slOffset, b.tpOffset
}

// Lines materializes the three leg entities for a render pass.
func (b *Bracket) Lines() []*Line {
	if b.phase != BracketPlaced {
		return nil
	}
	return []*Line{
		{ID: "bracket:entry", Kind: KindBracketEntry, Symbol: b.symbol, Price: b.entry, Side: b.side},
		{ID: "bracket:tp", Kind: KindBracketTP, Symbol: b.symbol, Price: b.tp, Side: b.side},
		{ID: "bracket:sl", Kind: KindBracketSL, Symbol: b.symbol, Price: b.sl, Side: b.side},
	}
}
