package sync

import (
	"math/rand"
	"sync"
	"time"
)

func randSeed() int64 { return time.Now().UnixNano() }

// mathRand is a mutex-guarded *rand.Rand: propagation's peer-subset
// selection needs a shared source, and math/rand's top-level functions are
// a global lock already, so wrapping our own avoids contending with the
// rest of the program's unrelated rand.Int63 calls.
type mathRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func newMathRand() *mathRand {
	return &mathRand{src: rand.New(rand.NewSource(randSeed()))}
}

func (m *mathRand) Perm(n int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src.Perm(n)
}
