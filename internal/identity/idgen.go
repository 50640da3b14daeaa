// Package identity assigns master identities to canonicalized donor records
// and reconciles identities later found to be the same person.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ncboe-donors/internal/normalize"
)

// Identity-id strategies. Random is coordination-free; Hash reproduces the
// same id across independent runs over identical input, accepting that two
// people sharing all four hashed components collide into one identity.
const (
	StrategyRandom = "random"
	StrategyHash   = "hash"
)

// IDGenerator produces master identity ids under a configured strategy.
type IDGenerator struct {
	strategy string
}

// NewIDGenerator creates a generator. An empty strategy means random;
// anything else unrecognized is an error so misconfiguration is visible.
func NewIDGenerator(strategy string) (*IDGenerator, error) {
	switch strategy {
	case StrategyRandom, StrategyHash, "":
		if strategy == "" {
			strategy = StrategyRandom
		}
		return &IDGenerator{strategy: strategy}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}

// Strategy returns the configured strategy name.
func (g *IDGenerator) Strategy() string { return g.strategy }

// NewID derives an id for a new identity from its canonical person and
// address. The hash strategy covers normalized last name, first three
// characters of the first name, five-digit ZIP and house number.
func (g *IDGenerator) NewID(person normalize.Person, addr normalize.Address) string {
	if g.strategy == StrategyHash {
		first := person.First
		if len(first) > 3 {
			first = first[:3]
		}
		key := strings.Join([]string{person.Last, first, addr.Zip, addr.HouseNumber}, "|")
		sum := sha256.Sum256([]byte(key))
		return "MP_" + strings.ToUpper(hex.EncodeToString(sum[:6]))
	}
	return "MP_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
