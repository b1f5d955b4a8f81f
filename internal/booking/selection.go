package booking

import "sort"

func findEstimate(ests []FareEstimate, c VehicleCategory) (FareEstimate, bool) {
	if c == "" {
		return FareEstimate{}, false
	}
	for _, e := range ests {
		if e.Category == c {
			return e, true
		}
	}
	return FareEstimate{}, false
}

// SortedEstimates returns a copy ordered by ascending fare. Ties keep the
// order the estimation service returned.
func SortedEstimates(ests []FareEstimate) []FareEstimate {
	out := append([]FareEstimate(nil), ests...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EstimatedFare < out[j].EstimatedFare
	})
	return out
}
