package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrame(initial ...float64) *Frame {
	f := &Frame{Vars: &Vars{}}
	for _, v := range initial {
		f.pushD(v)
	}
	return f
}

func TestStackOps(t *testing.T) {
	t.Run("dup", func(t *testing.T) {
		f := newFrame(3)
		require.NoError(t, bDup(f))
		assert.Equal(t, []float64{3, 3}, f.D[:f.d])
	})
	t.Run("swap", func(t *testing.T) {
		f := newFrame(1, 2)
		require.NoError(t, bSwap(f))
		assert.Equal(t, []float64{2, 1}, f.D[:f.d])
	})
	t.Run("rot", func(t *testing.T) {
		f := newFrame(1, 2, 3)
		require.NoError(t, bRot(f))
		assert.Equal(t, []float64{2, 3, 1}, f.D[:f.d])
	})
	t.Run("-rot", func(t *testing.T) {
		f := newFrame(1, 2, 3)
		require.NoError(t, bNRot(f))
		assert.Equal(t, []float64{3, 1, 2}, f.D[:f.d])
	})
	t.Run("over", func(t *testing.T) {
		f := newFrame(1, 2)
		require.NoError(t, bOver(f))
		assert.Equal(t, []float64{1, 2, 1}, f.D[:f.d])
	})
}

func TestReturnStack(t *testing.T) {
	f := newFrame(5)
	require.NoError(t, bToR(f))
	assert.Equal(t, 0, f.d)
	assert.Equal(t, 1, f.r)

	require.NoError(t, bRFetch(f))
	assert.Equal(t, []float64{5}, f.D[:f.d])

	require.NoError(t, bFromR(f))
	assert.Equal(t, []float64{5, 5}, f.D[:f.d])
	assert.Equal(t, 0, f.r)
}

func TestRFetchEmptyReturnStack(t *testing.T) {
	f := newFrame()
	err := bRFetch(f)
	assert.ErrorIs(t, err, errReturnStackEmpty)
}

func TestArithmetic(t *testing.T) {
	t.Run("division by zero folds to +Inf", func(t *testing.T) {
		f := newFrame(1, 0)
		require.NoError(t, bDiv(f))
		assert.True(t, math.IsInf(f.D[0], 1))
	})
	t.Run("mod by zero folds to +Inf", func(t *testing.T) {
		f := newFrame(7, 0)
		require.NoError(t, bMod(f))
		assert.True(t, math.IsInf(f.D[0], 1))
	})
	t.Run("pow abs's its base", func(t *testing.T) {
		f := newFrame(-2, 3)
		require.NoError(t, bPow(f))
		assert.Equal(t, 8.0, f.D[0])
	})
	t.Run("sqrt abs's its input", func(t *testing.T) {
		f := newFrame(-9)
		require.NoError(t, bSqrt(f))
		assert.Equal(t, 3.0, f.D[0])
	})
}

func TestMemory(t *testing.T) {
	f := newFrame()
	f.Vars.Memory[4] = 99
	f.pushD(4)
	require.NoError(t, bFetch(f))
	assert.Equal(t, 99.0, f.D[0])

	f2 := newFrame(42, 4)
	require.NoError(t, bStore(f2))
	assert.Equal(t, 42.0, f2.Vars.Memory[4])
}

func TestMemoryWrapsNegativeIndex(t *testing.T) {
	f := newFrame()
	f.Vars.Memory[MemorySize-1] = 7
	f.pushD(-1)
	require.NoError(t, bFetch(f))
	assert.Equal(t, 7.0, f.D[0])
}

func TestComplexPair(t *testing.T) {
	f := newFrame(1, 2, 3, 4) // (1+2i) + (3+4i)
	require.NoError(t, bZAdd(f))
	assert.Equal(t, []float64{4, 6}, f.D[:f.d])
}

func TestPrivateFusions(t *testing.T) {
	t.Run("fma computes a + b*c", func(t *testing.T) {
		f := newFrame(2, 3, 4) // a=2 b=3 c=4 -> 2 + 12
		require.NoError(t, pFMA(f))
		assert.Equal(t, 14.0, f.D[0])
	})
	t.Run("dupdup triples, not quadruples", func(t *testing.T) {
		f := newFrame(9)
		require.NoError(t, pDupDup(f))
		assert.Equal(t, []float64{9, 9, 9}, f.D[:f.d])
	})
	t.Run("-rotswap reverses the top three", func(t *testing.T) {
		f := newFrame(1, 2, 3)
		require.NoError(t, pRotSwapRev(f))
		assert.Equal(t, []float64{3, 2, 1}, f.D[:f.d])
	})
	t.Run(">=swap carries the third element through", func(t *testing.T) {
		f := newFrame(9, 2, 1) // x=9, a=2, b=1 -> a>=b true, then x on top
		require.NoError(t, pGeSwap(f))
		assert.Equal(t, []float64{1, 9}, f.D[:f.d])
	})
	t.Run("mult2/div2/pow2", func(t *testing.T) {
		f := newFrame(3)
		require.NoError(t, pMult2(f))
		assert.Equal(t, 6.0, f.D[0])

		f2 := newFrame(6)
		require.NoError(t, pDiv2(f2))
		assert.Equal(t, 3.0, f2.D[0])

		f3 := newFrame(-3)
		require.NoError(t, pPow2(f3))
		assert.Equal(t, 9.0, f3.D[0])
	})
}

func TestLookupBuiltin(t *testing.T) {
	h, ok := LookupBuiltin("dup")
	require.True(t, ok)
	assert.True(t, IsBuiltinHandle(h))
	assert.Equal(t, "dup", BuiltinAt(h).Name)

	_, ok = LookupBuiltin("does-not-exist")
	assert.False(t, ok)
}

func TestFoldBuiltin(t *testing.T) {
	h, _ := LookupBuiltin("+")
	v, err := FoldBuiltin(h, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}
