package vm

import "fmt"

// Disassemble renders prog as one line per instruction: its slot index,
// opcode name, and any immediate (a number literal or a resolved jump
// target). It never fails — an out-of-range or malformed arena just
// produces a line saying so, so tooling can always show something.
func Disassemble(prog *Arena) []string {
	var lines []string
	i := 0
	n := prog.Len()
	for i < n {
		slot := prog.At(i)
		if slot.Tag != SlotHandler {
			lines = append(lines, fmt.Sprintf("%04d: <malformed: expected handler, got %s>", i, slot.Tag))
			i++
			continue
		}
		if (slot.H == HNumber || slot.H == HJumpIf || slot.H == HJump) && i+1 >= n {
			lines = append(lines, fmt.Sprintf("%04d: <malformed: %s missing its immediate>", i, handleName(slot.H)))
			i++
			continue
		}
		switch slot.H {
		case HNumber:
			imm := prog.At(i + 1)
			lines = append(lines, fmt.Sprintf("%04d: number %g", i, imm.N))
			i += 2
		case HJumpIf:
			imm := prog.At(i + 1)
			lines = append(lines, fmt.Sprintf("%04d: jump_if -> %04d", i, i+imm.PC))
			i += 2
		case HJump:
			imm := prog.At(i + 1)
			lines = append(lines, fmt.Sprintf("%04d: jump -> %04d", i, i+imm.PC))
			i += 2
		default:
			lines = append(lines, fmt.Sprintf("%04d: %s", i, handleName(slot.H)))
			i++
		}
	}
	return lines
}
