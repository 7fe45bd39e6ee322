package compiler

import (
	"fmt"

	"github.com/rmay/salonforth/pkg/vm"
)

// Inline produces a fully flattened copy of ctx's main arena: every
// eval_code call to a user word is replaced, recursively, with a copy of
// that word's own body, so the executor never has to resolve a CodeRef at
// run time. This is spec.md §4.2's inliner.
//
// Because a word's dictionary entry exists before its body finishes
// compiling (spec.md §4.1 requires the name be visible inside the body it
// names, which is what lets "if"-guarded recursion even parse), a
// self-referential eval_code is representable and would otherwise recurse
// forever here; maxInlineDepth bounds the recursion and turns it into a
// compile-time error instead. Every user word's body is expanded once on its
// own as well, so a self-referential word is rejected even when main never
// calls it.
func Inline(ctx *Context) (*vm.Arena, error) {
	for _, w := range ctx.dict {
		if w.isBuiltin() {
			continue
		}
		if err := inlineInto(vm.NewArena(), w.Code, 1); err != nil {
			return nil, err
		}
	}
	dst := vm.NewArena()
	if err := inlineInto(dst, ctx.main.Code, 0); err != nil {
		return nil, err
	}
	return dst, nil
}

type pendingJump struct {
	dstOpIdx  int
	srcTarget int
}

// inlineInto copies src's slots onto the end of dst, expanding eval_code
// calls in place. Jump offsets are relative-offset, slot-index values local
// to the arena they were compiled into, so they cannot simply be copied
// across arenas of different shapes: inlineInto builds a src-index ->
// dst-index map as it goes and relocates every jump it copies against that
// map once the whole of src has been copied.
func inlineInto(dst *vm.Arena, src *vm.Arena, depth int) error {
	if depth > maxInlineDepth {
		return fmt.Errorf("recursion limit reached while inlining (max depth %d)", maxInlineDepth)
	}

	srcToDst := make(map[int]int, src.Len())
	var pending []pendingJump

	i := 0
	n := src.Len()
	for i < n {
		srcToDst[i] = dst.Len()
		slot := src.At(i)
		if slot.Tag != vm.SlotHandler {
			return fmt.Errorf("internal error: expected handler slot at arena index %d, got %s", i, slot.Tag)
		}
		switch slot.H {
		case vm.HNumber:
			dst.Append(slot)
			dst.Append(src.At(i + 1))
			i += 2

		case vm.HJumpIf, vm.HJump:
			opIdx := dst.Append(slot)
			dst.Append(vm.PCSlot(0))
			target := i + src.At(i+1).PC
			pending = append(pending, pendingJump{dstOpIdx: opIdx, srcTarget: target})
			i += 2

		case vm.HEvalCode:
			ref := src.At(i + 1).Ref
			if err := inlineInto(dst, ref, depth+1); err != nil {
				return err
			}
			i += 2

		default:
			// nop, halt, ordinary and private built-ins: single-slot, no
			// relocation needed.
			dst.Append(slot)
			i++
		}
	}
	srcToDst[n] = dst.Len()

	for _, p := range pending {
		dstTarget, ok := srcToDst[p.srcTarget]
		if !ok {
			return fmt.Errorf("internal error: jump target %d not reachable while inlining", p.srcTarget)
		}
		patchJump(dst, p.dstOpIdx, dstTarget)
	}
	return nil
}
