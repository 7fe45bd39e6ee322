package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDStackLenAndPop(t *testing.T) {
	v := &Vars{DStack: []float64{1, 2, 3}}
	assert.Equal(t, 3, v.DStackLen())
	assert.Equal(t, 3.0, v.DStackPop())
	assert.Equal(t, 2, v.DStackLen())
	assert.Equal(t, 2.0, v.DStackPop())
	assert.Equal(t, 1.0, v.DStackPop())
	assert.Equal(t, 0, v.DStackLen())
}
