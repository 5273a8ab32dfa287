// Package level generates the ten guard challenges of a session.
package level

import (
	crand "crypto/rand"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ashureev/guard-labs/internal/domain"
)

// CodeLength is the length of every generated code.
const CodeLength = 4

// decoyCount is the number of false keys embedded in the decoy level prompt.
const decoyCount = 3

// Code alphabets, selected by difficulty.
const (
	AlphabetHexLowercase     = "0123456789abcdef"
	AlphabetDigits           = "0123456789"
	AlphabetLowercaseLetters = "abcdefghijklmnopqrstuvwxyz"
	AlphabetLettersAndDigits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// AlphabetFor returns the code alphabet for a difficulty.
// Unknown difficulties fall back to lowercase hex.
func AlphabetFor(difficulty int) string {
	switch difficulty {
	case 1:
		return AlphabetDigits
	case 2:
		return AlphabetLowercaseLetters
	case 3:
		return AlphabetLettersAndDigits
	default:
		return AlphabetHexLowercase
	}
}

// Generator builds level sequences. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a generator drawing from src.
// A nil src seeds a ChaCha8 source from crypto/rand, so production codes are
// unpredictable per call while tests can pass a fixed source.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		var seed [32]byte
		// crypto/rand.Read never returns an error on supported platforms.
		_, _ = crand.Read(seed[:])
		src = rand.NewChaCha8(seed)
	}
	return &Generator{rnd: rand.New(src)}
}

// Code returns a random code for the difficulty.
func (g *Generator) Code(difficulty int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.codeLocked(AlphabetFor(difficulty))
}

func (g *Generator) codeLocked(alphabet string) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(alphabet[g.rnd.IntN(len(alphabet))])
	}
	return b.String()
}

// Generate returns a fresh ordered sequence of domain.LevelCount levels.
func (g *Generator) Generate(difficulty int) []domain.Level {
	g.mu.Lock()
	defer g.mu.Unlock()

	alphabet := AlphabetFor(difficulty)
	levels := make([]domain.Level, domain.LevelCount)
	for i := range levels {
		levels[i].Code = g.codeLocked(alphabet)
	}
	for i := range levels {
		n := i + 1
		var decoys []string
		if n == domain.DecoyLevel {
			decoys = g.decoysLocked(alphabet, levels[i].Code)
		}
		levels[i].Prompt = RenderPrompt(n, levels[i].Code, decoys)
	}
	return levels
}

// decoysLocked draws decoyCount codes distinct from code and from each other.
func (g *Generator) decoysLocked(alphabet, code string) []string {
	seen := map[string]struct{}{code: {}}
	decoys := make([]string, 0, decoyCount)
	for len(decoys) < decoyCount {
		d := g.codeLocked(alphabet)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		decoys = append(decoys, d)
	}
	return decoys
}
