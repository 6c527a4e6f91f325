package evaluation

// RecallAtK computes Recall@K: the fraction of relevant patients found in the top-K retrieved results.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}
	return float64(hitsAtK(relevant, retrieved, k)) / float64(len(relevant))
}

// PrecisionAtK computes the fraction of the top-K retrieved patients that are relevant.
// Returns 0.0 if nothing was retrieved.
func PrecisionAtK(relevant, retrieved []string, k int) float64 {
	n := len(topK(retrieved, k))
	if n == 0 || len(relevant) == 0 {
		return 0.0
	}
	return float64(hitsAtK(relevant, retrieved, k)) / float64(n)
}

// MRRAtK computes Mean Reciprocal Rank at K: the reciprocal of the rank of the first relevant patient
// in the top-K retrieved results. Returns 0.0 if no relevant patient is found in top-K.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := toSet(relevant)
	for i, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

func hitsAtK(relevant, retrieved []string, k int) int {
	relevantSet := toSet(relevant)
	found := 0
	for _, r := range topK(retrieved, k) {
		if _, ok := relevantSet[r]; ok {
			found++
			delete(relevantSet, r)
		}
	}
	return found
}

func topK(retrieved []string, k int) []string {
	if k >= 0 && k < len(retrieved) {
		return retrieved[:k]
	}
	return retrieved
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
