package vm

import "fmt"

// Stepper drives one instruction at a time through prog, the way the
// teacher's VM.Step()/PC() pair lets a debugger front-end pause between
// instructions. Exec is just a Stepper run to completion.
type Stepper struct {
	prog   *Arena
	frame  *Frame
	ip     int
	halted bool
}

// NewStepper returns a Stepper positioned at prog's first instruction.
func NewStepper(prog *Arena, frame *Frame) *Stepper {
	return &Stepper{prog: prog, frame: frame}
}

// PC returns the instruction index the next Step will execute.
func (s *Stepper) PC() int { return s.ip }

// Stack returns a snapshot of the current data stack, bottom first.
func (s *Stepper) Stack() []float64 {
	return append([]float64(nil), s.frame.D[:s.frame.d]...)
}

// Step executes exactly one instruction. It returns (true, nil) if
// execution should continue, (false, nil) once halt has run, and a
// non-nil error on any runtime fault.
func (s *Stepper) Step() (bool, error) {
	if s.halted {
		return false, nil
	}
	ip := s.ip
	n := s.prog.Len()
	if ip < 0 || ip >= n {
		return false, fmt.Errorf("vm: instruction pointer %d out of bounds (arena length %d)", ip, n)
	}
	slot := s.prog.At(ip)
	if slot.Tag != SlotHandler {
		return false, fmt.Errorf("vm: expected handler slot at %d, got %s", ip, slot.Tag)
	}
	frame := s.frame
	if frame.Logger != nil {
		frame.Logger("vm: ip=%d op=%s d=%v r=%v", ip, handleName(slot.H), frame.D[:frame.d], frame.R[:frame.r])
	}

	switch slot.H {
	case HNumber:
		imm := s.prog.At(ip + 1)
		if err := checkDepth(frame, 0, 1); err != nil {
			return false, err
		}
		frame.pushD(imm.N)
		s.ip = ip + 2

	case HJumpIf:
		imm := s.prog.At(ip + 1)
		if err := checkDepth(frame, 1, 0); err != nil {
			return false, err
		}
		v := frame.popD()
		if v == 0 {
			s.ip = ip + imm.PC
		} else {
			s.ip = ip + 2
		}

	case HJump:
		imm := s.prog.At(ip + 1)
		s.ip = ip + imm.PC

	case HNop:
		s.ip = ip + 1

	case HHalt:
		frame.Vars.DStack = append([]float64(nil), frame.D[:frame.d]...)
		frame.Vars.RStack = append([]float64(nil), frame.R[:frame.r]...)
		s.halted = true
		return false, nil

	case HEvalCode:
		return false, fmt.Errorf("vm: internal error: eval_code reached at runtime (inlining invariant violated)")

	default:
		def, err := lookupHandle(slot.H)
		if err != nil {
			return false, fmt.Errorf("vm: at ip=%d: %w", ip, err)
		}
		if err := checkDepth(frame, def.DPop, def.DPush); err != nil {
			return false, fmt.Errorf("vm: word %q: %w", def.Name, err)
		}
		if err := checkRDepth(frame, def.RPop, def.RPush); err != nil {
			return false, fmt.Errorf("vm: word %q: %w", def.Name, err)
		}
		if err := def.Exec(frame); err != nil {
			return false, fmt.Errorf("vm: word %q: %w", def.Name, err)
		}
		s.ip = ip + 1
	}
	return true, nil
}

// Exec runs prog (the final, inlined, peephole-optimized, verified main
// arena) to completion starting at slot 0, using frame's two preallocated
// stacks. It returns once halt executes or an internal error is hit.
//
// spec.md §4.5 describes this as threaded dispatch with each handler
// tail-transferring to the next. Go has no guaranteed tail-call
// elimination, so — per spec.md §9's design note — this is instead an
// explicit indexed loop dispatching through the opcode table; the
// observable semantics are identical.
func Exec(prog *Arena, frame *Frame) error {
	s := NewStepper(prog, frame)
	for {
		cont, err := s.Step()
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// FoldBuiltin evaluates a pure built-in at compile time against literal
// arguments (supplied bottom-of-stack first) by running the exact Exec
// function the runtime dispatch loop would call, so the peephole
// optimizer's constant folding can never drift from the runtime's own
// semantics (including IEEE-754 edge cases like division by zero).
func FoldBuiltin(h Handle, args ...float64) (float64, error) {
	var f Frame
	for _, a := range args {
		f.pushD(a)
	}
	def, err := lookupHandle(h)
	if err != nil {
		return 0, err
	}
	if err := def.Exec(&f); err != nil {
		return 0, err
	}
	if f.d != 1 {
		return 0, fmt.Errorf("FoldBuiltin: %q did not reduce to a single value (depth %d)", def.Name, f.d)
	}
	return f.D[0], nil
}

func lookupHandle(h Handle) (BuiltinDef, error) {
	switch {
	case IsBuiltinHandle(h):
		return BuiltinAt(h), nil
	case IsPrivateHandle(h):
		return PrivateAt(h), nil
	default:
		return BuiltinDef{}, fmt.Errorf("unknown opcode handle %d", h)
	}
}

func handleName(h Handle) string {
	switch h {
	case HNumber:
		return "number"
	case HJumpIf:
		return "jump_if"
	case HJump:
		return "jump"
	case HNop:
		return "nop"
	case HHalt:
		return "halt"
	case HEvalCode:
		return "eval_code"
	}
	if def, err := lookupHandle(h); err == nil {
		return def.Name
	}
	return "?"
}

func checkDepth(f *Frame, pops, pushes int) error {
	if f.d < pops {
		return fmt.Errorf("data stack underflow (have %d, need %d)", f.d, pops)
	}
	if f.d-pops+pushes > MaxStackDepth {
		return fmt.Errorf("data stack overflow (would reach %d, max %d)", f.d-pops+pushes, MaxStackDepth)
	}
	return nil
}

func checkRDepth(f *Frame, pops, pushes int) error {
	if f.r < pops {
		return fmt.Errorf("return stack underflow (have %d, need %d)", f.r, pops)
	}
	if f.r-pops+pushes > MaxStackDepth {
		return fmt.Errorf("return stack overflow (would reach %d, max %d)", f.r-pops+pushes, MaxStackDepth)
	}
	return nil
}
