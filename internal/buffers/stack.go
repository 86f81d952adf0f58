package buffers

// Stack returns a copy of the MRU stack, most recent first.
func (t *Table) Stack() []int {
	return append([]int(nil), t.stack...)
}

// StackPosition returns the cycling cursor.
func (t *Table) StackPosition() int {
	return t.stackPos
}

// StackNext advances the cycling cursor, wrapping, and returns the slot it
// names. The stack order is not changed.
func (t *Table) StackNext() int {
	if len(t.stack) == 0 {
		return NotFound
	}
	t.stackPos++
	if t.stackPos >= len(t.stack) {
		t.stackPos = 0
	}
	return t.stack[t.stackPos]
}

// StackPrev moves the cycling cursor back, wrapping, and returns the slot it
// names. The stack order is not changed.
func (t *Table) StackPrev() int {
	if len(t.stack) == 0 {
		return NotFound
	}
	t.stackPos--
	if t.stackPos < 0 {
		t.stackPos = len(t.stack) - 1
	}
	return t.stack[t.stackPos]
}

// CommitStackSelection moves the slot under the cycling cursor to the top of
// the stack and resets the cursor.
func (t *Table) CommitStackSelection() {
	if len(t.stack) == 0 {
		return
	}
	if t.stackPos >= len(t.stack) {
		t.stackPos = 0
	}
	t.MoveToStackTop(t.stack[t.stackPos])
	t.stackPos = 0
}

// MoveToStackTop moves slot index to the top of the stack, shifting the
// entries above its old position down by one.
func (t *Table) MoveToStackTop(index int) {
	pos := -1
	for i, idx := range t.stack {
		if idx == index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	copy(t.stack[1:pos+1], t.stack[:pos])
	t.stack[0] = index
}
