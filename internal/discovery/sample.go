package discovery

import "math/rand/v2"

// SelectRandom returns k distinct elements of pool chosen uniformly at random. A
// pool of at most k elements is returned unchanged.
func SelectRandom[T any](pool []T, k int, r *rand.Rand) []T {
	if len(pool) <= k {
		return pool
	}
	if k <= 0 {
		return []T{}
	}

	shuffled := make([]T, len(pool))
	copy(shuffled, pool)
	for i := len(shuffled) - 1; i > 0; i-- {
		var j int
		if r != nil {
			j = r.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k]
}
