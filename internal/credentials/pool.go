package credentials

import (
	"fmt"
)

// Pool is an ordered, read-only set of provider session tokens. Rotation
// order is fixed at construction; each task invocation walks the pool from
// the top so a healthy first credential always gets first refusal.
type Pool struct {
	tokens []string
}

// NewPool builds a pool from the configured token list. Blank entries are
// dropped, order is preserved.
func NewPool(tokens []string) (*Pool, error) {
	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("credential pool requires at least one token")
	}
	return &Pool{tokens: cleaned}, nil
}

// Tokens returns the rotation order as a fresh slice.
func (p *Pool) Tokens() []string {
	out := make([]string, len(p.tokens))
	copy(out, p.tokens)
	return out
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.tokens)
}

// Primary returns the first credential, used for read-only calls like cache
// retrievability checks where rotation is unnecessary.
func (p *Pool) Primary() string {
	return p.tokens[0]
}
