package text

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out node identifiers. A seeded generator yields the same
// sequence on every run, so re-parsing a document reproduces its ids.
type IDGenerator struct {
	mu  sync.Mutex
	src io.Reader
}

// NewIDGenerator returns a generator reading randomness from the system.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{src: rand.Reader}
}

// NewSeededIDGenerator returns a deterministic generator.
func NewSeededIDGenerator(seed uint64) *IDGenerator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	return &IDGenerator{src: mrand.NewChaCha8(key)}
}

// Next returns a fresh identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// AssignIDs sets an id on every node of t that has none.
func AssignIDs(t *StructuredText, gen *IDGenerator) {
	Walk(t, func(_ Path, node *StructuredText) bool {
		if node.ID == "" {
			node.ID = gen.Next()
		}
		return true
	})
}
