package compiler

import (
	"fmt"
	"strconv"

	"github.com/rmay/salonforth/pkg/vm"
)

// compilerBuiltins is the disjoint table of reserved words that drive the
// compiler itself rather than emitting an ordinary opcode (spec.md §3's "a
// second, disjoint table holds compiler built-ins"). They can never be
// redefined and are checked before an ordinary dictionary lookup.
var compilerBuiltins = map[string]bool{
	":": true, ";": true,
	"if": true, "else": true, "then": true,
	`\`: true, "(": true,
}

// Parse runs the single forward pass over src: tokenize, and for each token
// either emit a number, dispatch a compiler built-in, emit an ordinary
// built-in call, emit a placeholder call to a user word, or open/close a
// word definition. At end of input it requires a balanced jump stack and a
// top-level (main) defining word, then appends the terminal halt. This is
// spec.md §4.1's compiler stage.
func (c *Context) Parse(src []byte) error {
	sc := newScanner(src)
	for {
		tok, err := sc.nextToken()
		if err != nil {
			return err
		}
		if tok.eof {
			break
		}
		if err := c.dispatch(tok, sc); err != nil {
			return fmt.Errorf("line %d, column %d: %w", tok.line, tok.col, err)
		}
	}
	if c.definingWord != c.main {
		return fmt.Errorf("unterminated word definition %q (missing ';')", c.definingWord.Name)
	}
	if len(c.jumpStack) != 0 {
		return fmt.Errorf("unbalanced if/else/then (%d unclosed)", len(c.jumpStack))
	}
	c.main.Code.Append(vm.HandlerSlot(vm.HHalt))

	c.logf("parse: main arena has %d slots", c.main.Code.Len())
	inlined, err := Inline(c)
	if err != nil {
		return err
	}
	c.logf("inline: %d slots after inlining", inlined.Len())
	optimized, err := Peephole(inlined)
	if err != nil {
		return err
	}
	c.logf("peephole: %d slots after optimization", optimized.Len())
	if err := Verify(optimized); err != nil {
		return err
	}

	c.final = optimized
	c.parsed = true
	return nil
}

func (c *Context) dispatch(tok token, sc *scanner) error {
	name := tok.text

	switch name {
	case `\`:
		sc.skipToEndOfLine()
		return nil
	case "(":
		return sc.skipToCloseParen()
	case ":":
		return c.beginDefinition(sc)
	case ";":
		return c.endDefinition()
	case "if":
		return c.compileIf()
	case "else":
		return c.compileElse()
	case "then":
		return c.compileThen()
	}

	if n, ok := parseNumber(name); ok {
		arena := c.definingWord.Code
		arena.Append(vm.HandlerSlot(vm.HNumber))
		arena.Append(vm.NumberSlot(n))
		return nil
	}

	w, ok := c.lookup(name)
	if !ok {
		return fmt.Errorf("undefined word %q", name)
	}
	arena := c.definingWord.Code
	if w.isBuiltin() {
		arena.Append(vm.HandlerSlot(w.Builtin))
		return nil
	}
	// defineWord enters a word's name in the dictionary at ':' time, so w
	// is either a previously closed definition or the word currently being
	// defined (a self-reference, which the inliner rejects once it hits
	// maxInlineDepth). The call site gets an eval_code placeholder carrying
	// a reference to that word's arena; the inliner resolves it later.
	arena.Append(vm.HandlerSlot(vm.HEvalCode))
	arena.Append(vm.CodeRefSlot(w.Code))
	return nil
}

func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Context) beginDefinition(sc *scanner) error {
	if c.definingWord != c.main {
		return fmt.Errorf("nested word definitions are not allowed")
	}
	tok, err := sc.nextToken()
	if err != nil {
		return err
	}
	if tok.eof {
		return fmt.Errorf("expected a word name after ':'")
	}
	if compilerBuiltins[tok.text] {
		return fmt.Errorf("%q is a reserved word and cannot be defined", tok.text)
	}
	if _, ok := parseNumber(tok.text); ok {
		return fmt.Errorf("%q looks like a number and cannot be a word name", tok.text)
	}
	w, err := c.defineWord(tok.text)
	if err != nil {
		return err
	}
	c.definingWord = w
	return nil
}

func (c *Context) endDefinition() error {
	if c.definingWord == c.main {
		return fmt.Errorf("';' without a matching ':'")
	}
	if len(c.jumpStack) != 0 {
		return fmt.Errorf("';': %d unclosed if/else inside word %q", len(c.jumpStack), c.definingWord.Name)
	}
	c.definingWord = c.main
	return nil
}

// compileIf emits a jump_if with a placeholder target and pushes its opcode
// index so a matching else/then can patch it.
func (c *Context) compileIf() error {
	arena := c.definingWord.Code
	idx := arena.Append(vm.HandlerSlot(vm.HJumpIf))
	arena.Append(vm.PCSlot(0))
	if err := c.pushJump(idx); err != nil {
		return fmt.Errorf("'if': %w", err)
	}
	return nil
}

// compileElse patches the matching if's jump_if to land here (just past the
// unconditional jump it emits), then pushes that jump's index for then to
// patch.
func (c *Context) compileElse() error {
	ifIdx, err := c.popJump()
	if err != nil {
		return fmt.Errorf("'else' without a matching 'if'")
	}
	arena := c.definingWord.Code
	jmpIdx := arena.Append(vm.HandlerSlot(vm.HJump))
	arena.Append(vm.PCSlot(0))
	patchJump(arena, ifIdx, arena.Len())
	if err := c.pushJump(jmpIdx); err != nil {
		return fmt.Errorf("'else': %w", err)
	}
	return nil
}

// compileThen patches the pending if (or the else branch's unconditional
// jump) to land here.
func (c *Context) compileThen() error {
	idx, err := c.popJump()
	if err != nil {
		return fmt.Errorf("'then' without a matching 'if'")
	}
	arena := c.definingWord.Code
	patchJump(arena, idx, arena.Len())
	return nil
}

// patchJump sets the PC immediate following the handler slot at opIdx so
// that executing it lands at target, per spec.md §3: offsets are relative
// to the opcode slot, in slot-index units.
func patchJump(arena *vm.Arena, opIdx, target int) {
	arena.Set(opIdx+1, vm.PCSlot(target-opIdx))
}
