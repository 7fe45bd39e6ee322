package vm

import (
	"fmt"
	"math"
)

// Handle identifies what an opcode dispatch slot does. Control ops (number,
// jump_if, jump, nop, halt, eval_code) get fixed low handles; public
// built-ins get handles starting at builtinBase, indexing into Builtins;
// private (optimizer-only) built-ins get negative handles indexing into
// privateBuiltins, per spec.md §9's design note that private opcodes should
// be referred to "by opaque handle" rather than by a space-prefixed name.
type Handle int32

const (
	HNumber Handle = iota
	HJumpIf
	HJump
	HNop
	HHalt
	HEvalCode

	builtinBase Handle = 1000
)

// BuiltinDef is one row of the built-in registry: a name, its executor, and
// its declared data/return stack arity (used by the verifier).
type BuiltinDef struct {
	Name  string
	Exec  func(f *Frame) error
	DPush int
	DPop  int
	RPush int
	RPop  int
}

// Builtins is the static, append-only table of ordinary built-in words.
// Order fixes each word's Handle (builtinBase + index); do not reorder.
var Builtins = []BuiltinDef{
	{"dup", bDup, 2, 1, 0, 0},
	{"over", bOver, 3, 2, 0, 0},
	{"2dup", b2Dup, 4, 2, 0, 0},
	{"drop", bDrop, 0, 1, 0, 0},
	{"swap", bSwap, 2, 2, 0, 0},
	{"rot", bRot, 3, 3, 0, 0},
	{"-rot", bNRot, 3, 3, 0, 0},
	{"push", bToR, 0, 1, 1, 0},
	{"pop", bFromR, 1, 0, 0, 1},
	{">r", bToR, 0, 1, 1, 0},
	{"r>", bFromR, 1, 0, 0, 1},
	{"r@", bRFetch, 1, 0, 0, 0},

	{"@", bFetch, 1, 1, 0, 0},
	{"!", bStore, 0, 2, 0, 0},

	{"=", bEq, 1, 2, 0, 0},
	{"<>", bNe, 1, 2, 0, 0},
	{">", bGt, 1, 2, 0, 0},
	{"<", bLt, 1, 2, 0, 0},
	{">=", bGe, 1, 2, 0, 0},
	{"<=", bLe, 1, 2, 0, 0},

	{"+", bAdd, 1, 2, 0, 0},
	{"-", bSub, 1, 2, 0, 0},
	{"*", bMul, 1, 2, 0, 0},
	{"/", bDiv, 1, 2, 0, 0},
	{"mod", bMod, 1, 2, 0, 0},
	{"pow", bPow, 1, 2, 0, 0},
	{"**", bPow, 1, 2, 0, 0},
	{"negate", bNegate, 1, 1, 0, 0},

	{"sin", bSin, 1, 1, 0, 0},
	{"cos", bCos, 1, 1, 0, 0},
	{"tan", bTan, 1, 1, 0, 0},
	{"log", bLog, 1, 1, 0, 0},
	{"exp", bExp, 1, 1, 0, 0},
	{"sqrt", bSqrt, 1, 1, 0, 0},
	{"floor", bFloor, 1, 1, 0, 0},
	{"ceil", bCeil, 1, 1, 0, 0},
	{"abs", bAbs, 1, 1, 0, 0},
	{"atan2", bAtan2, 1, 2, 0, 0},
	{"min", bMin, 1, 2, 0, 0},
	{"max", bMax, 1, 2, 0, 0},
	{"pi", bPi, 1, 0, 0, 0},
	{"random", bRandom, 1, 0, 0, 0},

	{"and", bAnd, 1, 2, 0, 0},
	{"or", bOr, 1, 2, 0, 0},
	{"not", bNot, 1, 1, 0, 0},

	{"z+", bZAdd, 2, 4, 0, 0},
	{"z*", bZMul, 2, 4, 0, 0},

	{"x", bVarX, 1, 0, 0, 0},
	{"y", bVarY, 1, 0, 0, 0},
	{"t", bVarT, 1, 0, 0, 0},
	{"dt", bVarDT, 1, 0, 0, 0},
	{"mx", bVarMX, 1, 0, 0, 0},
	{"my", bVarMY, 1, 0, 0, 0},
	{"button", bVarButton, 1, 0, 0, 0},
	{"buttons", bVarButtons, 1, 0, 0, 0},
	{"audio", bVarAudio, 1, 0, 0, 0},
	{"sample", bSample, 1, 1, 0, 0},
	{"bwsample", bBwSample, 1, 1, 0, 0},
}

// builtinIndex maps a word name to its index into Builtins. Built at
// package init; names are exact-string, case-sensitive.
var builtinIndex = func() map[string]int {
	m := make(map[string]int, len(Builtins))
	for i, b := range Builtins {
		m[b.Name] = i
	}
	return m
}()

// LookupBuiltin returns the Handle for an ordinary built-in by name.
func LookupBuiltin(name string) (Handle, bool) {
	i, ok := builtinIndex[name]
	if !ok {
		return 0, false
	}
	return builtinBase + Handle(i), true
}

// BuiltinAt returns the registry row for a builtinBase-relative handle.
func BuiltinAt(h Handle) BuiltinDef {
	return Builtins[int(h-builtinBase)]
}

// IsBuiltinHandle reports whether h addresses the public builtin table.
func IsBuiltinHandle(h Handle) bool {
	return h >= builtinBase && int(h-builtinBase) < len(Builtins)
}

// privateBuiltins is the optimizer-only table. These are never reachable
// from source text: the parser never looks names up in this table (only the
// peephole optimizer resolves handles, through PrivateHandle), per spec.md
// §9's design note, rather than the source's leading-space-in-name
// convention.
var privateBuiltins = []BuiltinDef{
	{" fma", pFMA, 1, 3, 0, 0},
	{" multpi", pMultPi, 1, 1, 0, 0},
	{" dupdup", pDupDup, 3, 1, 0, 0},
	{" -rotswap", pRotSwapRev, 3, 3, 0, 0},
	{" >=swap", pGeSwap, 2, 3, 0, 0},
	{" multhalfpi", pMultHalfPi, 1, 1, 0, 0},
	{" mult2", pMult2, 1, 1, 0, 0},
	{" div2", pDiv2, 1, 1, 0, 0},
	{" pow2", pPow2, 1, 1, 0, 0},
}

var privateIndex = func() map[string]Handle {
	m := make(map[string]Handle, len(privateBuiltins))
	for i := range privateBuiltins {
		m[privateBuiltins[i].Name] = Handle(-1 - i)
	}
	return m
}()

// PrivateHandle returns the opaque handle for a named private built-in, for
// use only by the peephole optimizer when constructing fused instructions.
func PrivateHandle(name string) Handle { return privateIndex[name] }

// PrivateAt returns the registry row for a private (negative) handle.
func PrivateAt(h Handle) BuiltinDef {
	return privateBuiltins[int(-1-h)]
}

// IsPrivateHandle reports whether h addresses the private builtin table.
func IsPrivateHandle(h Handle) bool {
	return h < 0 && int(-1-h) < len(privateBuiltins)
}

// ---- stack helpers shared by built-in implementations ----

func (f *Frame) pushD(v float64) { f.D[f.d] = v; f.d++ }
func (f *Frame) popD() float64   { f.d--; return f.D[f.d] }
func (f *Frame) pushR(v float64) { f.R[f.r] = v; f.r++ }
func (f *Frame) popR() float64   { f.r--; return f.R[f.r] }

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ---- stack ops ----

func bDup(f *Frame) error  { v := f.popD(); f.pushD(v); f.pushD(v); return nil }
func bOver(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(a); f.pushD(b); f.pushD(a); return nil }
func b2Dup(f *Frame) error {
	b, a := f.popD(), f.popD()
	f.pushD(a)
	f.pushD(b)
	f.pushD(a)
	f.pushD(b)
	return nil
}
func bDrop(f *Frame) error { f.popD(); return nil }
func bSwap(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(b); f.pushD(a); return nil }
func bRot(f *Frame) error {
	c, b, a := f.popD(), f.popD(), f.popD()
	f.pushD(b)
	f.pushD(c)
	f.pushD(a)
	return nil
}
func bNRot(f *Frame) error {
	c, b, a := f.popD(), f.popD(), f.popD()
	f.pushD(c)
	f.pushD(a)
	f.pushD(b)
	return nil
}
func bToR(f *Frame) error   { f.pushR(f.popD()); return nil }
func bFromR(f *Frame) error { f.pushD(f.popR()); return nil }
func bRFetch(f *Frame) error {
	if f.r == 0 {
		return errReturnStackEmpty
	}
	f.pushD(f.R[f.r-1])
	return nil
}

var errReturnStackEmpty = fmt.Errorf("return stack empty")

// ---- memory ----

func bFetch(f *Frame) error {
	idx := int(f.popD()) % len(f.Vars.Memory)
	if idx < 0 {
		idx += len(f.Vars.Memory)
	}
	f.pushD(f.Vars.Memory[idx])
	return nil
}

func bStore(f *Frame) error {
	idx := int(f.popD())
	v := f.popD()
	n := len(f.Vars.Memory)
	idx = ((idx % n) + n) % n
	f.Vars.Memory[idx] = v
	return nil
}

// ---- comparisons ----

func bEq(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a == b)); return nil }
func bNe(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a != b)); return nil }
func bGt(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a > b)); return nil }
func bLt(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a < b)); return nil }
func bGe(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a >= b)); return nil }
func bLe(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(boolf(a <= b)); return nil }

// ---- arithmetic ----

func bAdd(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(a + b); return nil }
func bSub(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(a - b); return nil }
func bMul(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(a * b); return nil }
func bDiv(f *Frame) error {
	b, a := f.popD(), f.popD()
	if b == 0 {
		f.pushD(math.Inf(1))
		return nil
	}
	f.pushD(a / b)
	return nil
}
func bMod(f *Frame) error {
	b, a := f.popD(), f.popD()
	if b == 0 {
		f.pushD(math.Inf(1))
		return nil
	}
	f.pushD(math.Mod(a, b))
	return nil
}
func bPow(f *Frame) error {
	b, a := f.popD(), f.popD()
	f.pushD(math.Pow(math.Abs(a), b))
	return nil
}
func bNegate(f *Frame) error { f.pushD(-f.popD()); return nil }

// ---- math ----

func bSin(f *Frame) error   { f.pushD(math.Sin(f.popD())); return nil }
func bCos(f *Frame) error   { f.pushD(math.Cos(f.popD())); return nil }
func bTan(f *Frame) error   { f.pushD(math.Tan(f.popD())); return nil }
func bLog(f *Frame) error   { f.pushD(math.Log(math.Abs(f.popD()))); return nil }
func bExp(f *Frame) error   { f.pushD(math.Exp(f.popD())); return nil }
func bSqrt(f *Frame) error  { f.pushD(math.Sqrt(math.Abs(f.popD()))); return nil }
func bFloor(f *Frame) error { f.pushD(math.Floor(f.popD())); return nil }
func bCeil(f *Frame) error  { f.pushD(math.Ceil(f.popD())); return nil }
func bAbs(f *Frame) error   { f.pushD(math.Abs(f.popD())); return nil }
func bAtan2(f *Frame) error {
	x, y := f.popD(), f.popD()
	f.pushD(math.Atan2(y, x))
	return nil
}
func bMin(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(math.Min(a, b)); return nil }
func bMax(f *Frame) error { b, a := f.popD(), f.popD(); f.pushD(math.Max(a, b)); return nil }
func bPi(f *Frame) error  { f.pushD(math.Pi); return nil }
func bRandom(f *Frame) error {
	f.pushD(globalRandom())
	return nil
}

// ---- logic ----

func bAnd(f *Frame) error {
	b, a := f.popD(), f.popD()
	f.pushD(boolf(a != 0 && b != 0))
	return nil
}
func bOr(f *Frame) error {
	b, a := f.popD(), f.popD()
	f.pushD(boolf(a != 0 || b != 0))
	return nil
}
func bNot(f *Frame) error { f.pushD(boolf(f.popD() == 0)); return nil }

// ---- complex pair ----

func bZAdd(f *Frame) error {
	bIm, bRe, aIm, aRe := f.popD(), f.popD(), f.popD(), f.popD()
	f.pushD(aRe + bRe)
	f.pushD(aIm + bIm)
	return nil
}
func bZMul(f *Frame) error {
	bIm, bRe, aIm, aRe := f.popD(), f.popD(), f.popD(), f.popD()
	f.pushD(aRe*bRe - aIm*bIm)
	f.pushD(aRe*bIm + aIm*bRe)
	return nil
}

// ---- variables (x, y, t, dt are host inputs; the rest are stubs for host
// capabilities not wired in this engine) ----

func bVarX(f *Frame) error       { f.pushD(f.Vars.X); return nil }
func bVarY(f *Frame) error       { f.pushD(f.Vars.Y); return nil }
func bVarT(f *Frame) error       { f.pushD(f.Vars.T); return nil }
func bVarDT(f *Frame) error      { f.pushD(f.Vars.DT); return nil }
func bVarMX(f *Frame) error      { f.pushD(f.Vars.Mx); return nil }
func bVarMY(f *Frame) error      { f.pushD(f.Vars.My); return nil }
func bVarButton(f *Frame) error  { f.pushD(f.Vars.Button); return nil }
func bVarButtons(f *Frame) error { f.pushD(f.Vars.Buttons); return nil }
func bVarAudio(f *Frame) error   { f.pushD(f.Vars.Audio); return nil }
func bSample(f *Frame) error     { f.popD(); f.pushD(0); return nil }
func bBwSample(f *Frame) error   { f.popD(); f.pushD(0); return nil }

// ---- private (peephole-synthesized) built-ins ----

func pFMA(f *Frame) error {
	c, b, a := f.popD(), f.popD(), f.popD()
	f.pushD(a + b*c)
	return nil
}
func pMultPi(f *Frame) error { f.pushD(f.popD() * math.Pi); return nil }
// pDupDup fuses two consecutive "dup" calls: v -> v v -> v v v, three copies
// of the original value, not four.
func pDupDup(f *Frame) error {
	v := f.popD()
	f.pushD(v)
	f.pushD(v)
	f.pushD(v)
	return nil
}
func pRotSwapRev(f *Frame) error {
	c, b, a := f.popD(), f.popD(), f.popD()
	f.pushD(c)
	f.pushD(b)
	f.pushD(a)
	return nil
}
func pGeSwap(f *Frame) error {
	b, a, c := f.popD(), f.popD(), f.popD()
	f.pushD(boolf(a >= b))
	f.pushD(c)
	return nil
}
func pMultHalfPi(f *Frame) error { f.pushD(f.popD() * (math.Pi / 2)); return nil }
func pMult2(f *Frame) error      { f.pushD(f.popD() * 2); return nil }
func pDiv2(f *Frame) error       { f.pushD(f.popD() / 2); return nil }
func pPow2(f *Frame) error       { f.pushD(math.Pow(math.Abs(f.popD()), 2)); return nil }
