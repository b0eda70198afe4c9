package testutil

// FixedIDGenerator returns the same id every time.
//
// Useful for request-correlation ids in log assertions, where every call
// should carry one known value.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed id generator.
//
// If id is empty, Generate() returns "test-request".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id. Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

