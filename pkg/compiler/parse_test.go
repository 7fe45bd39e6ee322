package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmay/salonforth/pkg/vm"
)

func runSource(t *testing.T, src string, vars *vm.Vars) []float64 {
	t.Helper()
	ctx := New()
	require.NoError(t, ctx.Parse([]byte(src)))
	frame := &vm.Frame{Vars: vars}
	require.NoError(t, vm.Exec(ctx.Program(), frame))
	return vars.DStack
}

func TestScenarioSimpleAdd(t *testing.T) {
	assert.Equal(t, []float64{3}, runSource(t, "1 2 +", &vm.Vars{}))
}

func TestScenarioConstantFolded(t *testing.T) {
	ctx := New()
	require.NoError(t, ctx.Parse([]byte("3 4 * 2 +")))
	// Folds to a single number instruction (2 slots: opcode + immediate)
	// followed by halt (1 slot): three slots total.
	assert.Equal(t, 3, ctx.Program().Len())
	frame := &vm.Frame{Vars: &vm.Vars{}}
	require.NoError(t, vm.Exec(ctx.Program(), frame))
	assert.Equal(t, []float64{14}, frame.Vars.DStack)
}

func TestScenarioWordDefinition(t *testing.T) {
	assert.Equal(t, []float64{25}, runSource(t, ": sq dup * ; 5 sq", &vm.Vars{}))
}

func TestScenarioIfElse(t *testing.T) {
	assert.Equal(t, []float64{20}, runSource(t, "x if 10 else 20 then", &vm.Vars{X: 0}))
	assert.Equal(t, []float64{10}, runSource(t, "x if 10 else 20 then", &vm.Vars{X: 1}))
}

func TestScenarioNestedWordsWithIfElse(t *testing.T) {
	src := ": nice 60 5 4 + + ; : juanita 400 10 5 5 + + + ; x if nice else juanita then 2 * 4 / 2 *"
	assert.Equal(t, []float64{420}, runSource(t, src, &vm.Vars{X: 0}))
	assert.Equal(t, []float64{69}, runSource(t, src, &vm.Vars{X: 1}))
}

func TestScenarioDivisionByZero(t *testing.T) {
	result := runSource(t, "1 0 /", &vm.Vars{})
	require.Len(t, result, 1)
	assert.True(t, math.IsInf(result[0], 1))
}

func TestScenarioPiFusion(t *testing.T) {
	result := runSource(t, "pi 2 *", &vm.Vars{})
	require.Len(t, result, 1)
	assert.InDelta(t, 2*math.Pi, result[0], 1e-9)
}

func TestRedefinitionRejected(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte(": sq dup * ; : sq dup * ;"))
	assert.Error(t, err)
}

func TestRedefinitionOfBuiltinRejected(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte(": + dup ;"))
	assert.Error(t, err)
}

func TestUnterminatedDefinition(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte(": sq dup *"))
	assert.Error(t, err)
}

func TestThenWithoutIf(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte("then"))
	assert.Error(t, err)
}

func TestDefinitionClosedWithJumpStackOpenRejected(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte("x if : foo dup ; 1 then"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclosed")
}

func TestWordBodyWithUnclosedIfRejected(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte(": bad dup if dup ;"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclosed")
}

func TestUndefinedWord(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte("frobnicate"))
	assert.Error(t, err)
}

func TestStackUnderflowRejectedAtVerify(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte("+"))
	assert.Error(t, err)
}

func TestNonPrintableByteRejected(t *testing.T) {
	ctx := New()
	err := ctx.Parse([]byte("1 2\xff+"))
	assert.Error(t, err)
}

func TestOversizeTokenRejected(t *testing.T) {
	ctx := New()
	long := make([]byte, maxTokenLen+1)
	for i := range long {
		long[i] = 'a'
	}
	err := ctx.Parse(long)
	assert.Error(t, err)
}
