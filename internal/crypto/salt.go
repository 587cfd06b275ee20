package crypto

import (
	"math"
	"math/big"
	"math/rand/v2"
	"time"
)

// SaltSource generates order salts as round(rand * now_ms). The result
// stays below 2^53 so receivers that parse it as a float64 keep it exact.
// It is not a cryptographic nonce.
type SaltSource struct {
	rand func() float64
	now  func() time.Time
}

// NewSaltSource uses the process-wide random source and wall clock.
func NewSaltSource() *SaltSource {
	return &SaltSource{rand: rand.Float64, now: time.Now}
}

// NewFixedSaltSource builds a deterministic source for tests and replays.
func NewFixedSaltSource(r func() float64, now func() time.Time) *SaltSource {
	return &SaltSource{rand: r, now: now}
}

// Next returns a fresh salt.
func (s *SaltSource) Next() *big.Int {
	ms := float64(s.now().UnixMilli())
	return big.NewInt(int64(math.Round(s.rand() * ms)))
}
