package flagrelay

import (
	"math/rand/v2"

	"github.com/ctfpipe/flagrelay/internal"
	"github.com/zeebo/xxh3"
)

// Selector decides which candidate servers a Connect call attempts, and in
// what order. Connect tries the returned addresses one by one, failing over
// to the next on a classified connection failure.
type Selector interface {
	// Order returns the attempt sequence for one Connect call.
	// It must not mutate candidates.
	Order(candidates []string) []string
}

// Ordered returns a selector that tries candidates in list order.
// This is the default.
func Ordered() Selector { return orderedSelector{} }

type orderedSelector struct{}

func (orderedSelector) Order(candidates []string) []string { return candidates }

// Random returns a selector that tries candidates in a shuffled order,
// visiting each at most once per Connect call.
func Random() Selector { return randomSelector{} }

type randomSelector struct{}

func (randomSelector) Order(candidates []string) []string {
	order := make([]string, len(candidates))
	copy(order, candidates)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// SelectorFunc adapts a caller-supplied selection function into a Selector.
// The function receives the full candidate list and returns exactly one
// address to try. There is no fallback to the other candidates: if the
// chosen server fails, Connect fails.
type SelectorFunc func(candidates []string) string

func (f SelectorFunc) Order(candidates []string) []string {
	return []string{f(candidates)}
}

// HashSelector returns a selector that deterministically picks one candidate
// by jump-hashing key. Workers that pass a stable identity (exploit name,
// team id) spread across the candidate servers without coordinating, and a
// given worker keeps hitting the same server across reconnects.
// Like SelectorFunc, it tries exactly one candidate per Connect call.
func HashSelector(key string) Selector {
	return SelectorFunc(func(candidates []string) string {
		return candidates[internal.JumpHash(xxh3.HashString(key), len(candidates))]
	})
}
