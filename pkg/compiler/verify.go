package compiler

import (
	"fmt"

	"github.com/rmay/salonforth/pkg/vm"
)

// Verify statically simulates prog's data-stack depth using each
// instruction's declared arity, without following either arm of a branch
// (spec.md §4.4's open question (a) is resolved here in favor of the
// lenient, straight-line reading: jump_if's predicate pop is accounted
// for, but the branch itself is treated, like jump/nop/halt, as having no
// further stack effect of its own). It rejects a program that could
// underflow or overflow the fixed-depth stack, and rejects anything other
// than exactly one halt at the very end.
func Verify(prog *vm.Arena) error {
	depth := 0
	n := prog.Len()
	i := 0
	haltAt := -1

	for i < n {
		slot := prog.At(i)
		if slot.Tag != vm.SlotHandler {
			return fmt.Errorf("internal error: expected handler slot at %d, got %s", i, slot.Tag)
		}
		if haltAt >= 0 {
			return fmt.Errorf("instruction at %d follows halt at %d", i, haltAt)
		}

		switch slot.H {
		case vm.HNumber:
			if err := grow(&depth, 0, 1); err != nil {
				return fmt.Errorf("at %d: number: %w", i, err)
			}
			i += 2

		case vm.HJumpIf:
			if err := grow(&depth, 1, 0); err != nil {
				return fmt.Errorf("at %d: if: %w", i, err)
			}
			i += 2

		case vm.HJump:
			i += 2

		case vm.HNop:
			i++

		case vm.HHalt:
			haltAt = i
			i++

		case vm.HEvalCode:
			return fmt.Errorf("internal error: eval_code at %d survived inlining", i)

		default:
			def, err := lookupVerifyDef(slot.H)
			if err != nil {
				return fmt.Errorf("at %d: %w", i, err)
			}
			if err := grow(&depth, def.DPop, def.DPush); err != nil {
				return fmt.Errorf("at %d: word %q: %w", i, def.Name, err)
			}
			i++
		}
	}

	if haltAt < 0 {
		return fmt.Errorf("program does not end in halt")
	}
	return nil
}

func grow(depth *int, pop, push int) error {
	if *depth < pop {
		return fmt.Errorf("stack underflow (have %d, need %d)", *depth, pop)
	}
	next := *depth - pop + push
	if next > vm.MaxStackDepth {
		return fmt.Errorf("stack overflow (would reach %d, max %d)", next, vm.MaxStackDepth)
	}
	*depth = next
	return nil
}

func lookupVerifyDef(h vm.Handle) (vm.BuiltinDef, error) {
	switch {
	case vm.IsBuiltinHandle(h):
		return vm.BuiltinAt(h), nil
	case vm.IsPrivateHandle(h):
		return vm.PrivateAt(h), nil
	default:
		return vm.BuiltinDef{}, fmt.Errorf("unknown opcode handle %d", h)
	}
}
