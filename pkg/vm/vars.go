package vm

// MemorySize is the compile-time constant slot count of Vars.Memory; @ and
// ! address it modulo this count (spec.md §6).
const MemorySize = 16

// MaxStackDepth is the fixed capacity, in doubles, of each of the data and
// return stacks (spec.md §3/§5).
const MaxStackDepth = 32

// Vars is the per-invocation record the host fills in before Run and reads
// the residue from afterward. It corresponds to spec.md §3's "Run
// variables": inputs, mouse/audio stubs, a fixed memory array, and the
// write-only stack-pointer outputs.
//
// Unlike the C-shaped spec (where the data stack lives on the Context and
// Vars only holds a pointer into it), here the data/return stack residue is
// copied by value into fresh slices in Vars by the executor's halt handler,
// so DStackLen/DStackPop need no separate Context argument. This is recorded as the chosen
// realization of the "final_d_stack_ptr" field in spec.md's data model.
type Vars struct {
	X, Y, T, DT float64

	Mx, My  float64
	Button  float64
	Buttons float64
	Audio   float64

	Memory [MemorySize]float64

	// DStack and RStack hold the residue after a Run call: the portion of
	// the engine's fixed 32-slot stacks that was still occupied when halt
	// executed. Top of stack is the last element.
	DStack []float64
	RStack []float64
}

// DStackLen returns the number of values left on the data stack.
func (v *Vars) DStackLen() int { return len(v.DStack) }

// DStackPop removes and returns the top of the data stack residue. It
// panics if the stack is empty, mirroring the host-contract assumption
// (spec.md §6) that callers check DStackLen first.
func (v *Vars) DStackPop() float64 {
	n := len(v.DStack) - 1
	top := v.DStack[n]
	v.DStack = v.DStack[:n]
	return top
}

// Frame is the executor's working state for one Run call: the two
// preallocated stacks, their current depths, and a pointer to the
// invocation's variables. It is the "(instruction_pointer, d_stack_top,
// r_stack_top, vars)" argument bundle spec.md §4.5 describes each handler
// as receiving.
type Frame struct {
	D    [MaxStackDepth]float64
	d    int
	R    [MaxStackDepth]float64
	r    int
	Vars *Vars

	// Logger, when non-nil, receives a formatted trace line per dispatched
	// instruction. The host-supplied status-reporting side-channel from
	// spec.md §1/§6.
	Logger func(format string, args ...any)
}
