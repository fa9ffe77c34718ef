package engine

import (
	"math/rand"
	"time"
)

// Clock abstracts time so eligibility rules stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Rand is the ambient randomness source behind check-in delays and message
// picks. Seedable in tests.
type Rand interface {
	Float64() float64
}

func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
