package overlay

// DragState tracks the pointer-driven lifecycle of one line drag.
type DragState int

const (
	DragIdle DragState = iota
	DragArmed
	DragDragging
)

// PrimaryButton is the only pointer button that arms a drag.
const PrimaryButton = 0

const (
	// hitBandHalf: the grab region is a vertical band taller than the
	// 1px visual line so the pointer doesn't need pixel accuracy.
	hitBandHalf = 5.5
	// dragThresholdPx: releases at or below this pixel delta are
	// treated as accidental and resolve to a no-op.
	dragThresholdPx = 2.0
)

// DragResult is the resolution of one drag session on pointer release.
type DragResult struct {
	LineID      string
	OriginY     float64
	OriginPrice float64
	Delta       float64
	FinalY      float64
	// Moved is true only when the pixel delta exceeded the accidental-drag
	// threshold; the caller still has to compare snapped prices.
	Moved bool
}

// DragController is the per-surface state machine translating pointer
// engagement into a snapped modify intent. At most one session exists at a
// time; global pointer observation is scoped to that session and torn down
// on resolution or surface teardown.
type DragController struct {
	state        DragState
	lineID       string
	pointerStart float64
	originY      float64
	originPrice  float64
	offsetY      float64
}

// Engage starts a session for the given line. Only the primary button arms;
// any other button (or an already-active session) is ignored.
func (d *DragController) Engage(lineID string, pointerY, lineY, originPrice float64, button int) bool {
	if button != PrimaryButton || d.state != DragIdle {
		return false
	}
	d.state = DragArmed
	d.lineID = lineID
	d.pointerStart = pointerY
	d.originY = lineY
	d.originPrice = originPrice
	d.offsetY = 0
	return true
}

// Move records pointer motion. The first observed movement promotes an
// armed session to dragging.
func (d *DragController) Move(pointerY float64) {
	if d.state == DragIdle {
		return
	}
	d.state = DragDragging
	d.offsetY = pointerY - d.pointerStart
}

// Release resolves the session. The controller always returns to Idle so
// the next engagement starts clean.
func (d *DragController) Release(pointerY float64) (DragResult, bool) {
	if d.state == DragIdle {
		return DragResult{}, false
	}
	delta := pointerY - d.pointerStart
	res := DragResult{
		LineID:      d.lineID,
		OriginY:     d.originY,
		OriginPrice: d.originPrice,
		Delta:       delta,
		FinalY:      d.originY + delta,
		Moved:       delta > dragThresholdPx || delta < -dragThresholdPx,
	}
	d.reset()
	return res, true
}

// Cancel tears the session down with no side effect (surface teardown,
// frame loss).
func (d *DragController) Cancel() {
	d.reset()
}

func (d *DragController) reset() {
	*d = DragController{}
}

// Active reports whether a session holds the pointer. While true the whole
// overlay surface intercepts input so the pointer cannot escape mid-drag.
func (d *DragController) Active() bool {
	return d.state != DragIdle
}

// TargetID returns the line the active session is attached to.
func (d *DragController) TargetID() string {
	return d.lineID
}

// OffsetY is the live pixel offset from the engagement point.
func (d *DragController) OffsetY() float64 {
	return d.offsetY
}

// OriginY is the line's pixel row at engagement, used for the ghost line.
func (d *DragController) OriginY() float64 {
	return d.originY
}

// HitTest reports whether a pointer row falls inside a line's grab band.
func HitTest(pointerY, lineY float64) bool {
	diff := pointerY - lineY
	return diff >= -hitBandHalf && diff <= hitBandHalf
}
