// Package allocation computes the moderator rotation and the round plan of a
// session at start time. It is pure: no I/O, no clock, randomness is injected.
package allocation

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"trivia-lab/domain"
	"trivia-lab/errors"

	"github.com/samber/lo"
)

// DefaultRounds is the number of rounds of a session unless configured otherwise.
const DefaultRounds = 8

// QuestionProvider supplies the opaque question text of a category.
type QuestionProvider interface {
	Question(category domain.Category) string
}

type QuestionFunc func(category domain.Category) string

func (f QuestionFunc) Question(category domain.Category) string { return f(category) }

// PlaceholderQuestions stands in for a real content provider.
var PlaceholderQuestions = QuestionFunc(func(category domain.Category) string {
	return fmt.Sprintf("Sample question for category %s", category)
})

// Allocation is the outcome of one draw.
type Allocation struct {
	ModeratorOrder   []domain.ParticipantID
	Categories       []domain.Category
	RoundAssignments []domain.RoundAssignment
}

// Allocator draws a fresh allocation on every call.
// The random source is guarded so one Allocator can be shared.
type Allocator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	rounds    int
	questions QuestionProvider
}

func NewAllocator(rounds int, questions QuestionProvider, rng *rand.Rand) *Allocator {
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	if questions == nil {
		questions = PlaceholderQuestions
	}
	if rng == nil {
		rng = NewSeededRand(rand.Uint64(), rand.Uint64())
	}
	return &Allocator{rng: rng, rounds: rounds, questions: questions}
}

// NewRand returns a PCG source seeded from crypto/rand.
func NewRand() (*rand.Rand, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return NewSeededRand(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])), nil
}

// NewSeededRand gives a reproducible source, mostly for tests.
func NewSeededRand(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

func (a *Allocator) Rounds() int { return a.rounds }

// Allocate shuffles the roster into a moderator rotation and draws the
// categories of every round from the catalog.
// Duplicate ids or labels are collapsed before shuffling.
func (a *Allocator) Allocate(roster []domain.ParticipantID, catalog []domain.Category) (Allocation, error) {
	ids := lo.Uniq(roster)
	if len(ids) == 0 {
		return Allocation{}, errors.ErrInsufficientParticipants
	}
	labels := lo.Uniq(catalog)
	if len(labels) < a.rounds {
		return Allocation{}, fmt.Errorf("%w: %d categories for %d rounds",
			errors.ErrInsufficientCategories, len(labels), a.rounds)
	}

	a.mu.Lock()
	order := Shuffle(a.rng, ids)
	categories := Shuffle(a.rng, labels)[:a.rounds]
	a.mu.Unlock()

	assignments := lo.Map(categories, func(category domain.Category, i int) domain.RoundAssignment {
		return domain.RoundAssignment{
			Round:    i + 1,
			Category: category,
			Question: a.questions.Question(category),
		}
	})
	return Allocation{
		ModeratorOrder:   order,
		Categories:       categories,
		RoundAssignments: assignments,
	}, nil
}

// Shuffle returns a Fisher-Yates permutation of items; the input is not modified.
// Every permutation is equally likely given a uniform source.
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	out := slices.Clone(items)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
