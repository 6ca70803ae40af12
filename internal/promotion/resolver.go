package promotion

import "sort"

// Resolve orders candidates and prunes conflicts. The sort key is priority
// descending with promotion id ascending as the tie-break, so resolution is
// deterministic and reproducible outside the database's orderBy.
//
// The walk accumulates selections: an exclusive promotion becomes the sole
// selection and ends the walk; stop_further_processing keeps what was
// selected so far and ends the walk. The returned order is the order the
// calculator applies discounts in.
func Resolve(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Promotion, sorted[j].Promotion
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})

	var selected []Candidate
	for _, c := range sorted {
		if c.Promotion.IsExclusive {
			selected = []Candidate{c}
			break
		}
		selected = append(selected, c)
		if c.Promotion.StopFurtherProcessing {
			break
		}
	}
	return selected
}
