package usecase

import "math/bits"

// SimilarityRatio scores two strings on a 0..100 scale as
// 100 * (1 - indel(a, b) / (len(a) + len(b))), where indel is the edit
// distance allowing only insertions and deletions and lengths count runes.
// The comparison is case and whitespace sensitive. The result is rounded
// half to even, so it is an exact integer function of the inputs. Two empty
// strings score 100.
func SimilarityRatio(a, b string) int {
	return similarityRunes([]rune(a), []rune(b))
}

func similarityRunes(a, b []rune) int {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// indel = total - 2*lcs, so the ratio is 200*lcs/total.
	return roundHalfEven(200*lcsLength(a, b), total)
}

// similarityUpperBound is the best score two strings of these lengths can reach.
func similarityUpperBound(lenA, lenB int) int {
	total := lenA + lenB
	if total == 0 {
		return 100
	}
	return roundHalfEven(200*min(lenA, lenB), total)
}

func roundHalfEven(num, den int) int {
	q, r := num/den, num%den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	return q
}

// lcsLength computes the longest common subsequence with the bit-parallel
// recurrence V' = (V + (V & M)) | (V &^ M) over the shorter string, so the
// cost is O(len(long) * len(short)/64).
func lcsLength(a, b []rune) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) == 0 {
		return 0
	}

	words := (len(a) + 63) / 64
	masks := make(map[rune][]uint64, len(a))
	for i, r := range a {
		m, ok := masks[r]
		if !ok {
			m = make([]uint64, words)
			masks[r] = m
		}
		m[i/64] |= 1 << uint(i%64)
	}

	v := make([]uint64, words)
	for i := range v {
		v[i] = ^uint64(0)
	}

	for _, r := range b {
		m, ok := masks[r]
		if !ok {
			continue
		}
		var carry uint64
		for w := range v {
			u := v[w] & m[w]
			sum, c := bits.Add64(v[w], u, carry)
			carry = c
			v[w] = sum | (v[w] &^ m[w])
		}
	}

	lcs := 0
	for w := range v {
		zeros := ^v[w]
		if w == words-1 && len(a)%64 != 0 {
			zeros &= (uint64(1) << uint(len(a)%64)) - 1
		}
		lcs += bits.OnesCount64(zeros)
	}
	return lcs
}
