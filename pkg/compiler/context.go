// Package compiler implements the tokenizer/compiler, inliner, peephole
// optimizer, and stack-effect verifier for the Forth Salon shader engine,
// built on top of pkg/vm's instruction arena and executor.
package compiler

import (
	"fmt"

	"github.com/rmay/salonforth/pkg/vm"
)

// maxJumpStackDepth is the compile-time-only back-patch stack limit from
// spec.md §3/§4.1.
const maxJumpStackDepth = 63

// maxInlineDepth is the inliner's recursion limit from spec.md §4.2.
const maxInlineDepth = 100

// wordEntry is a dictionary entry: either a built-in (Name == "", Builtin
// set) or a user word (Name set, Code owns its own arena). Per spec.md §3,
// "the empty-name test is the is-built-in predicate".
type wordEntry struct {
	Name    string
	Builtin vm.Handle
	Code    *vm.Arena
}

func (w *wordEntry) isBuiltin() bool { return w.Name == "" }

// Context owns the dictionary, the distinguished main word, the
// in-progress definition (if any), and the compile-time jump stack. It
// corresponds to spec.md §3's "Context".
type Context struct {
	dict         map[string]*wordEntry
	main         *wordEntry
	definingWord *wordEntry // nil while `:` has suspended top-level definition
	jumpStack    []int

	parsed bool
	final  *vm.Arena // inlined, peephole-optimized, verified program; set by Parse

	// Logger receives formatted trace lines during parse/inline/peephole,
	// the same host status-reporting side-channel pkg/vm.Frame exposes at
	// run time (spec.md §1/§6/§7: "a host-provided string-logging
	// callback").
	Logger func(format string, args ...any)
}

// New creates a context with all built-ins registered and an empty main
// word ready to receive top-level definitions, mirroring the C API's
// new() from spec.md §6.
func New() *Context {
	c := &Context{dict: make(map[string]*wordEntry)}
	for _, b := range vm.Builtins {
		h, _ := vm.LookupBuiltin(b.Name)
		c.dict[b.Name] = &wordEntry{Builtin: h}
	}
	c.main = &wordEntry{Name: "main", Code: vm.NewArena()}
	c.definingWord = c.main
	return c
}

func (c *Context) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger(format, args...)
	}
}

// defineWord inserts a new user word; fails if the name already exists
// (built-in or user), per spec.md §4.1 "Redefinition of any existing word
// (user or built-in) is rejected."
func (c *Context) defineWord(name string) (*wordEntry, error) {
	if _, exists := c.dict[name]; exists {
		return nil, fmt.Errorf("word %q already defined", name)
	}
	if name == c.main.Name {
		return nil, fmt.Errorf("word %q already defined", name)
	}
	w := &wordEntry{Name: name, Code: vm.NewArena()}
	c.dict[name] = w
	return w, nil
}

func (c *Context) lookup(name string) (*wordEntry, bool) {
	w, ok := c.dict[name]
	return w, ok
}

func (c *Context) pushJump(idx int) error {
	if len(c.jumpStack) >= maxJumpStackDepth {
		return fmt.Errorf("jump stack overflow (max depth %d)", maxJumpStackDepth)
	}
	c.jumpStack = append(c.jumpStack, idx)
	return nil
}

func (c *Context) popJump() (int, error) {
	if len(c.jumpStack) == 0 {
		return 0, fmt.Errorf("jump stack underflow")
	}
	n := len(c.jumpStack) - 1
	idx := c.jumpStack[n]
	c.jumpStack = c.jumpStack[:n]
	return idx, nil
}

// Free releases the context's arenas. Go's garbage collector reclaims the
// memory on its own, but Free is kept as an explicit operation to mirror
// spec.md §6's free(context) and to give hosts embedding this engine in a
// pool a clear release point.
func (c *Context) Free() {
	c.dict = nil
	c.main = nil
	c.definingWord = nil
	c.jumpStack = nil
}

// Program returns the final, inlined, peephole-optimized, verified arena
// ready to hand to vm.Exec. Only valid after a successful Parse.
func (c *Context) Program() *vm.Arena {
	return c.final
}

// Disassemble renders c's compiled program as one line per instruction.
func Disassemble(c *Context) []string {
	return vm.Disassemble(c.final)
}
