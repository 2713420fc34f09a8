package delta

import (
	"github.com/cespare/xxhash/v2"
)

// matcher accelerates the encoder's longest-match search with a hash table of
// k-gram positions in original, keyed by an xxhash of each k-gram. A hash
// collision can only add spurious candidates, never produce an incorrect
// match: every candidate is verified byte-by-byte before it is used.
type matcher struct {
	original []byte
	minMatch int
	table    map[uint64][]int
}

func newMatcher(original []byte, minMatch int) *matcher {
	m := &matcher{
		original: original,
		minMatch: minMatch,
		table:    make(map[uint64][]int),
	}

	if minMatch <= 0 || len(original) < minMatch {
		return m
	}

	for pos := 0; pos <= len(original)-minMatch; pos++ {
		h := kgramHash(original[pos : pos+minMatch])
		m.table[h] = append(m.table[h], pos)
	}

	return m
}

// longestMatch finds the longest run in original matching data starting at
// index i. It returns a zero length if no match reaches minMatch. Ties are
// broken toward the earliest position, per the encoder's determinism note.
func (m *matcher) longestMatch(data []byte, i int) (pos, length int) {
	if m.minMatch <= 0 || i+m.minMatch > len(data) {
		return 0, 0
	}

	h := kgramHash(data[i : i+m.minMatch])
	candidates, ok := m.table[h]
	if !ok {
		return 0, 0
	}

	bestLen := 0
	bestPos := -1
	for _, p := range candidates {
		l := extendMatch(m.original, p, data, i)
		if l > bestLen || (l == bestLen && l > 0 && p < bestPos) {
			bestLen = l
			bestPos = p
		}
	}

	if bestPos < 0 || bestLen < m.minMatch {
		return 0, 0
	}
	return bestPos, bestLen
}

func extendMatch(original []byte, p int, data []byte, i int) int {
	n := 0
	for p+n < len(original) && i+n < len(data) && original[p+n] == data[i+n] {
		n++
	}
	return n
}

func kgramHash(b []byte) uint64 {
	return xxhash.Sum64(b)
}
