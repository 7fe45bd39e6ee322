package compiler

import (
	"fmt"
	"math"

	"github.com/rmay/salonforth/pkg/vm"
)

const pi = math.Pi

// maxPeepholePasses bounds the optimizer at two passes: the first pass
// folds constants and fuses adjacent builtin pairs; the second catches the
// fusions those first-pass rewrites expose (e.g. "pi *" and "number 2.0 /"
// each collapse on pass one, and only then sit adjacent as "multpi div2"
// for pass two to fuse into multhalfpi). Spec.md §4.3 fixes this at two.
const maxPeepholePasses = 2

// instrKind distinguishes a number literal from every other single-slot or
// jump opcode in the optimizer's instruction-index-addressed working
// representation.
type instrKind uint8

const (
	kindOp instrKind = iota
	kindNumber
)

// instr is one decoded instruction, addressed by position in a []instr
// slice rather than by raw arena slot index. Jump targets are instruction
// indices (which may equal len(instrs), meaning "fall off the end"), not
// slot offsets; Peephole re-linearizes back to slot offsets on encode.
type instr struct {
	kind   instrKind
	h      vm.Handle
	n      float64
	target int
}

func isOp(in instr, h vm.Handle) bool { return in.kind == kindOp && in.h == h }
func isNumber(in instr) bool          { return in.kind == kindNumber }
func isJump(in instr) bool            { return in.kind == kindOp && (in.h == vm.HJump || in.h == vm.HJumpIf) }

// handles used by pattern matching, resolved once against the registries
// in pkg/vm rather than duplicated as magic constants here.
var (
	hMul    = mustBuiltin("*")
	hAdd    = mustBuiltin("+")
	hDiv    = mustBuiltin("/")
	hPow    = mustBuiltin("pow")
	hPowAlt = mustBuiltin("**")
	hPi     = mustBuiltin("pi")
	hDup    = mustBuiltin("dup")
	hNRot   = mustBuiltin("-rot")
	hSwap   = mustBuiltin("swap")
	hGe     = mustBuiltin(">=")

	hFMA        = vm.PrivateHandle(" fma")
	hMultPi     = vm.PrivateHandle(" multpi")
	hDupDup     = vm.PrivateHandle(" dupdup")
	hRotSwapRev = vm.PrivateHandle(" -rotswap")
	hGeSwap     = vm.PrivateHandle(" >=swap")
	hMultHalfPi = vm.PrivateHandle(" multhalfpi")
	hMult2      = vm.PrivateHandle(" mult2")
	hDiv2       = vm.PrivateHandle(" div2")
	hPow2       = vm.PrivateHandle(" pow2")
)

func mustBuiltin(name string) vm.Handle {
	h, ok := vm.LookupBuiltin(name)
	if !ok {
		panic("peephole: unknown builtin " + name)
	}
	return h
}

// foldableBinary/foldableUnary list the pure, side-effect-free built-ins
// (no Vars, no memory, no randomness) eligible for "number N, number M, op"
// / "number N, op" constant folding. Folding is done by actually running
// vm.FoldBuiltin, so it can never drift from runtime semantics.
var foldableBinary = foldSet("+", "-", "*", "/", "mod", "pow", "**", "and", "or", "=", "<>", ">", "<", ">=", "<=", "atan2", "min", "max")
var foldableUnary = foldSet("negate", "sin", "cos", "tan", "log", "exp", "sqrt", "floor", "ceil", "abs")

func foldSet(names ...string) map[vm.Handle]bool {
	m := make(map[vm.Handle]bool, len(names))
	for _, n := range names {
		m[mustBuiltin(n)] = true
	}
	return m
}

// Peephole runs the inlined arena through constant folding and instruction
// fusion, at most maxPeepholePasses times, stopping early at a fixed
// point. This is spec.md §4.3.
func Peephole(prog *vm.Arena) (*vm.Arena, error) {
	instrs, err := decode(prog)
	if err != nil {
		return nil, err
	}
	for pass := 0; pass < maxPeepholePasses; pass++ {
		next, changed := peepholePass(instrs)
		instrs = next
		if !changed {
			break
		}
	}
	return encode(instrs), nil
}

func peepholePass(instrs []instr) ([]instr, bool) {
	targets := jumpTargets(instrs)
	out := make([]instr, 0, len(instrs))
	oldToNew := make(map[int]int, len(instrs))
	changed := false

	i := 0
	for i < len(instrs) {
		if fused, consumed, ok := tryFuse(instrs, i, targets); ok {
			oldToNew[i] = len(out)
			out = append(out, fused)
			i += consumed
			changed = true
			continue
		}
		oldToNew[i] = len(out)
		out = append(out, instrs[i])
		i++
	}
	oldToNew[len(instrs)] = len(out)

	for idx := range out {
		if isJump(out[idx]) {
			out[idx].target = oldToNew[out[idx].target]
		}
	}
	return out, changed
}

// jumpTargets returns the set of instruction indices any jump in instrs
// lands on; a fusion may never swallow one of these as an interior
// instruction, or the jump would have nowhere valid to land.
func jumpTargets(instrs []instr) map[int]bool {
	t := make(map[int]bool)
	for _, in := range instrs {
		if isJump(in) {
			t[in.target] = true
		}
	}
	return t
}

// tryFuse attempts every known fusion pattern starting at i, longest
// window first, refusing any match whose interior (but not its first
// instruction) is a jump target.
func tryFuse(instrs []instr, i int, targets map[int]bool) (instr, int, bool) {
	// number N, number M, <pure binary op> -> number fold(N,M)
	if i+2 < len(instrs) && isNumber(instrs[i]) && isNumber(instrs[i+1]) &&
		instrs[i+2].kind == kindOp && foldableBinary[instrs[i+2].h] && !targets[i+1] && !targets[i+2] {
		if v, err := vm.FoldBuiltin(instrs[i+2].h, instrs[i].n, instrs[i+1].n); err == nil {
			return instr{kind: kindNumber, n: v}, 3, true
		}
	}
	// number N, <pure unary op> -> number fold(N)
	if i+1 < len(instrs) && isNumber(instrs[i]) && instrs[i+1].kind == kindOp &&
		foldableUnary[instrs[i+1].h] && !targets[i+1] {
		if v, err := vm.FoldBuiltin(instrs[i+1].h, instrs[i].n); err == nil {
			return instr{kind: kindNumber, n: v}, 2, true
		}
	}
	// number 2.0, * / ** -> private mult2 / div2 / pow2
	if i+1 < len(instrs) && isNumber(instrs[i]) && instrs[i].n == 2.0 && !targets[i+1] {
		switch {
		case isOp(instrs[i+1], hMul):
			return instr{kind: kindOp, h: hMult2}, 2, true
		case isOp(instrs[i+1], hDiv):
			return instr{kind: kindOp, h: hDiv2}, 2, true
		case isOp(instrs[i+1], hPow) || isOp(instrs[i+1], hPowAlt):
			return instr{kind: kindOp, h: hPow2}, 2, true
		}
	}
	// number N, private mult2 -> number 2N (catches pass-two folding once
	// pass one has turned "number 2.0, *" into mult2 next to a literal).
	if i+1 < len(instrs) && isNumber(instrs[i]) && isOp(instrs[i+1], hMult2) && !targets[i+1] {
		return instr{kind: kindNumber, n: instrs[i].n * 2}, 2, true
	}
	// single-opcode pairs (peephole_1): "* +" -> fma
	if i+1 < len(instrs) && isOp(instrs[i], hMul) && isOp(instrs[i+1], hAdd) && !targets[i+1] {
		return instr{kind: kindOp, h: hFMA}, 2, true
	}
	// "pi *" -> multpi
	if i+1 < len(instrs) && isOp(instrs[i], hPi) && isOp(instrs[i+1], hMul) && !targets[i+1] {
		return instr{kind: kindOp, h: hMultPi}, 2, true
	}
	// "dup dup" -> dupdup
	if i+1 < len(instrs) && isOp(instrs[i], hDup) && isOp(instrs[i+1], hDup) && !targets[i+1] {
		return instr{kind: kindOp, h: hDupDup}, 2, true
	}
	// "-rot swap" -> -rotswap
	if i+1 < len(instrs) && isOp(instrs[i], hNRot) && isOp(instrs[i+1], hSwap) && !targets[i+1] {
		return instr{kind: kindOp, h: hRotSwapRev}, 2, true
	}
	// ">= swap" -> >=swap
	if i+1 < len(instrs) && isOp(instrs[i], hGe) && isOp(instrs[i+1], hSwap) && !targets[i+1] {
		return instr{kind: kindOp, h: hGeSwap}, 2, true
	}
	// "multpi div2" -> multhalfpi (only reachable once a prior pass has
	// produced both halves, hence the two-pass limit)
	if i+1 < len(instrs) && isOp(instrs[i], hMultPi) && isOp(instrs[i+1], hDiv2) && !targets[i+1] {
		return instr{kind: kindOp, h: hMultHalfPi}, 2, true
	}
	// "pi, mult2/div2/pow2" -> a pure constant: pi's value is known at
	// compile time even though it is a builtin call rather than a number
	// literal, so once a prior pass (or "pi 2 *") has produced one of
	// these private ops right after pi, the whole pair folds away. This is
	// what lets "pi 2 *" reach a literal 2π constant in at most two passes.
	if i+1 < len(instrs) && isOp(instrs[i], hPi) && !targets[i+1] {
		switch {
		case isOp(instrs[i+1], hMult2):
			return instr{kind: kindNumber, n: 2 * pi}, 2, true
		case isOp(instrs[i+1], hDiv2):
			return instr{kind: kindNumber, n: pi / 2}, 2, true
		case isOp(instrs[i+1], hPow2):
			return instr{kind: kindNumber, n: pi * pi}, 2, true
		}
	}
	return instr{}, 0, false
}

// decode linearizes prog's slots into instruction-index-addressed form,
// resolving every jump's slot-offset target to an instruction index.
func decode(prog *vm.Arena) ([]instr, error) {
	var out []instr
	var slotStart []int
	i := 0
	n := prog.Len()
	for i < n {
		slotStart = append(slotStart, i)
		s := prog.At(i)
		switch s.H {
		case vm.HNumber:
			out = append(out, instr{kind: kindNumber, n: prog.At(i + 1).N})
			i += 2
		case vm.HJumpIf, vm.HJump:
			out = append(out, instr{kind: kindOp, h: s.H, target: i + prog.At(i+1).PC})
			i += 2
		default:
			out = append(out, instr{kind: kindOp, h: s.H})
			i++
		}
	}
	slotStart = append(slotStart, n)

	slotToIdx := make(map[int]int, len(slotStart))
	for idx, slot := range slotStart {
		slotToIdx[slot] = idx
	}
	for idx := range out {
		if isJump(out[idx]) {
			ti, ok := slotToIdx[out[idx].target]
			if !ok {
				return nil, fmt.Errorf("internal error: jump target slot %d is not on an instruction boundary", out[idx].target)
			}
			out[idx].target = ti
		}
	}
	return out, nil
}

// encode re-linearizes instrs back into a slot arena, recomputing every
// jump's relative slot offset from the new layout.
func encode(instrs []instr) *vm.Arena {
	arena := vm.NewArena()
	start := make([]int, len(instrs)+1)
	for idx, in := range instrs {
		start[idx] = arena.Len()
		if in.kind == kindNumber {
			arena.Append(vm.HandlerSlot(vm.HNumber))
			arena.Append(vm.NumberSlot(in.n))
			continue
		}
		arena.Append(vm.HandlerSlot(in.h))
		if isJump(in) {
			arena.Append(vm.PCSlot(0))
		}
	}
	start[len(instrs)] = arena.Len()

	for idx, in := range instrs {
		if isJump(in) {
			opSlot := start[idx]
			arena.Set(opSlot+1, vm.PCSlot(start[in.target]-opSlot))
		}
	}
	return arena
}
