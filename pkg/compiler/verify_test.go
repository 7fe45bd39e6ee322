package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmay/salonforth/pkg/vm"
)

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	a := vm.NewArena()
	a.Append(vm.HandlerSlot(vm.HNumber))
	a.Append(vm.NumberSlot(1))
	a.Append(vm.HandlerSlot(vm.HNumber))
	a.Append(vm.NumberSlot(2))
	hAdd, _ := vm.LookupBuiltin("+")
	a.Append(vm.HandlerSlot(hAdd))
	a.Append(vm.HandlerSlot(vm.HHalt))
	require.NoError(t, Verify(a))
}

func TestVerifyRejectsUnderflow(t *testing.T) {
	a := vm.NewArena()
	hAdd, _ := vm.LookupBuiltin("+")
	a.Append(vm.HandlerSlot(hAdd))
	a.Append(vm.HandlerSlot(vm.HHalt))
	assert.Error(t, Verify(a))
}

func TestVerifyRejectsOverflow(t *testing.T) {
	a := vm.NewArena()
	hDup, _ := vm.LookupBuiltin("dup")
	for i := 0; i < vm.MaxStackDepth; i++ {
		a.Append(vm.HandlerSlot(vm.HNumber))
		a.Append(vm.NumberSlot(float64(i)))
	}
	a.Append(vm.HandlerSlot(hDup))
	a.Append(vm.HandlerSlot(vm.HHalt))
	assert.Error(t, Verify(a))
}

func TestVerifyRejectsMissingHalt(t *testing.T) {
	a := vm.NewArena()
	a.Append(vm.HandlerSlot(vm.HNumber))
	a.Append(vm.NumberSlot(1))
	assert.Error(t, Verify(a))
}

func TestVerifyRejectsInstructionsAfterHalt(t *testing.T) {
	a := vm.NewArena()
	a.Append(vm.HandlerSlot(vm.HHalt))
	a.Append(vm.HandlerSlot(vm.HNop))
	assert.Error(t, Verify(a))
}
