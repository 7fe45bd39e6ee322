package vm

import (
	"math/rand"
	"sync"
	"time"
)

// The random built-in draws from a single process-global stream, seeded
// once on first use. spec.md §9 leaves seeding policy to the host; this
// engine seeds from wall-clock time the first time random is evaluated
// anywhere in the process, matching the teacher's habit of process-global
// state (its execution trace sink is likewise a single shared stream).
var (
	randOnce sync.Once
	randSrc  *rand.Rand
)

func globalRandom() float64 {
	randOnce.Do(func() {
		randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))
	})
	return randSrc.Float64()
}
