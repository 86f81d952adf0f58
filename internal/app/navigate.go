package app

import "github.com/dshills/bufkeep/internal/buffers"

// Activate makes slot i current and most recently used.
func (a *Application) Activate(i int) {
	slot := a.table.Slot(i)
	if slot == nil {
		return
	}
	a.table.Activate(i)
	a.hookErr(a.ext.OnSwitchFile(slot.Path))
}

// Next activates the slot after the current one, wrapping.
func (a *Application) Next() int {
	idx := a.table.Next()
	a.Activate(idx)
	return idx
}

// Prev activates the slot before the current one, wrapping.
func (a *Application) Prev() int {
	idx := a.table.Prev()
	a.Activate(idx)
	return idx
}

// CycleNext shows the next older buffer in most-recently-used order
// without reordering the stack. EndCycle commits the choice.
func (a *Application) CycleNext() int {
	return a.cycle(a.table.StackNext())
}

// CyclePrev shows the next newer buffer in most-recently-used order.
func (a *Application) CyclePrev() int {
	return a.cycle(a.table.StackPrev())
}

func (a *Application) cycle(idx int) int {
	if idx == buffers.NotFound {
		return idx
	}
	a.table.SetCurrent(idx)
	a.hookErr(a.ext.OnSwitchFile(a.table.Slot(idx).Path))
	return idx
}

// EndCycle moves the buffer chosen by cycling to the top of the stack.
func (a *Application) EndCycle() {
	a.table.CommitStackSelection()
}

// MoveTabLeft moves the current buffer one position towards the start.
func (a *Application) MoveTabLeft() {
	if cur := a.table.Current(); cur > 0 {
		a.table.ShiftTo(cur, cur-1)
	}
}

// MoveTabRight moves the current buffer one position towards the end.
func (a *Application) MoveTabRight() {
	if cur := a.table.Current(); cur != buffers.NotFound && cur < a.table.Len()-1 {
		a.table.ShiftTo(cur, cur+1)
	}
}
