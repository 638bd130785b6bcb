package placeholder

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	// TokenAlphabet is the set of characters tokens are drawn from.
	TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// TokenLength is the length of every token.
	TokenLength = 8
)

// TokenGenerator issues placeholder tokens. A generator built from the same
// seed issues the same sequence.
type TokenGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTokenGenerator returns a generator seeded with seed.
func NewTokenGenerator(seed uint64) *TokenGenerator {
	return &TokenGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomTokenGenerator returns a generator seeded from the runtime's
// random source.
func NewRandomTokenGenerator() *TokenGenerator {
	return &TokenGenerator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// Next returns a token that is neither in used nor a substring of source.
// The chosen token is added to used.
func (g *TokenGenerator) Next(source string, used map[string]bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, TokenLength)
	for {
		for i := range buf {
			buf[i] = TokenAlphabet[g.rng.IntN(len(TokenAlphabet))]
		}
		tok := string(buf)
		if used[tok] || strings.Contains(source, tok) {
			continue
		}
		used[tok] = true
		return tok
	}
}
