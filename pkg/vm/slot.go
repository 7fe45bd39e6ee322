// Package vm implements the instruction arena and threaded-dispatch executor
// for the Forth Salon shader expression engine.
package vm

import "fmt"

// SlotTag identifies which field of a Slot is meaningful.
type SlotTag uint8

const (
	// SlotHandler carries an opcode dispatch handle (a built-in, a private
	// built-in, or one of the control ops number/jump_if/jump/nop/halt/eval_code).
	SlotHandler SlotTag = iota
	// SlotNumber carries an IEEE-754 double immediate.
	SlotNumber
	// SlotPC carries a relative program-counter offset, used as a jump target.
	SlotPC
	// SlotCodeRef carries a reference to a user word's code arena. Only
	// valid before inlining.
	SlotCodeRef
)

func (t SlotTag) String() string {
	switch t {
	case SlotHandler:
		return "handler"
	case SlotNumber:
		return "number"
	case SlotPC:
		return "pc"
	case SlotCodeRef:
		return "coderef"
	default:
		return fmt.Sprintf("SlotTag(%d)", uint8(t))
	}
}

// Slot is one cell of an instruction arena: a tagged union of an opcode
// dispatch handle, a float64 immediate, a relative jump offset, or a
// reference to another arena.
type Slot struct {
	Tag SlotTag
	H   Handle // valid when Tag == SlotHandler
	N   float64
	PC  int
	Ref *Arena // valid when Tag == SlotCodeRef
}

// HandlerSlot builds a SlotHandler cell.
func HandlerSlot(h Handle) Slot { return Slot{Tag: SlotHandler, H: h} }

// NumberSlot builds a SlotNumber cell.
func NumberSlot(n float64) Slot { return Slot{Tag: SlotNumber, N: n} }

// PCSlot builds a SlotPC cell.
func PCSlot(offset int) Slot { return Slot{Tag: SlotPC, PC: offset} }

// CodeRefSlot builds a SlotCodeRef cell.
func CodeRefSlot(a *Arena) Slot { return Slot{Tag: SlotCodeRef, Ref: a} }

// Arena is a growable, indexable sequence of instruction slots. Indices are
// stable across Append but not across Reset.
type Arena struct {
	slots []Slot
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Len returns the number of slots currently in the arena.
func (a *Arena) Len() int { return len(a.slots) }

// Append adds one slot and returns its index.
func (a *Arena) Append(s Slot) int {
	a.slots = append(a.slots, s)
	return len(a.slots) - 1
}

// At returns the slot at index i.
func (a *Arena) At(i int) Slot { return a.slots[i] }

// Set overwrites the slot at index i, used for back-patching.
func (a *Arena) Set(i int, s Slot) { a.slots[i] = s }

// Reset empties the arena; previously returned indices become invalid.
func (a *Arena) Reset() { a.slots = a.slots[:0] }

// Slots returns the underlying slot slice for read-only iteration.
func (a *Arena) Slots() []Slot { return a.slots }
