package order

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	numberPrefix   = "GH-"
	numberLow      = 10000
	numberSpan     = 90000
	numberAttempts = 8
)

// NumberGenerator issues human-readable order numbers of the form GH-NNNNN.
// Numbers this process already issued are re-drawn a bounded number of
// times; uniqueness across processes is not guaranteed.
type NumberGenerator struct {
	mu     sync.Mutex
	issued *bloom.BloomFilter
	intn   func(n int) int
}

// NewNumberGenerator returns a generator sized for the five-digit space.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{
		issued: bloom.NewWithEstimates(numberSpan, 0.001),
		intn:   rand.IntN,
	}
}

// Next returns a fresh order number.
func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var n string
	for range numberAttempts {
		n = fmt.Sprintf("%s%05d", numberPrefix, numberLow+g.intn(numberSpan))
		if !g.issued.TestString(n) {
			break
		}
	}
	g.issued.AddString(n)
	return n
}
