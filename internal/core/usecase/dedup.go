package usecase

// Near-duplicate cut-offs. Hybrid indexes hold the long OCR bodies and need
// the stricter value.
const (
	DefaultDedupThreshold = 70
	HybridDedupThreshold  = 85
)

// Deduplicate walks texts in rank order and keeps an entry only if its
// SimilarityRatio against every previously kept entry is below threshold.
// A score equal to the threshold counts as a duplicate. It returns the kept
// indices in input order.
func Deduplicate(texts []string, threshold int) []int {
	kept := make([]int, 0, len(texts))
	accepted := make([][]rune, 0, len(texts))

	for i, text := range texts {
		candidate := []rune(text)
		if isNearDuplicate(candidate, accepted, threshold) {
			continue
		}
		kept = append(kept, i)
		accepted = append(accepted, candidate)
	}
	return kept
}

func isNearDuplicate(candidate []rune, accepted [][]rune, threshold int) bool {
	for _, rep := range accepted {
		if similarityUpperBound(len(candidate), len(rep)) < threshold {
			continue
		}
		if similarityRunes(candidate, rep) >= threshold {
			return true
		}
	}
	return false
}
