package wealth

import "sort"

// Quintile labels, poorest first.
const (
	Q1 = "Q1_Poorest"
	Q2 = "Q2"
	Q3 = "Q3"
	Q4 = "Q4"
	Q5 = "Q5_Richest"
)

// Quintiles lists the labels in order.
var Quintiles = []string{Q1, Q2, Q3, Q4, Q5}

// AssignQuintiles bins scores into five equal-frequency groups by rank. Equal scores are
// ordered by user id, so every user lands in exactly one quintile and group sizes never
// differ by more than one.
func AssignQuintiles(ids []string, scores []float64) []string {
	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if scores[ia] != scores[ib] {
			return scores[ia] < scores[ib]
		}
		return idAt(ids, ia) < idAt(ids, ib)
	})

	labels := make([]string, n)
	for rank, i := range order {
		labels[i] = Quintiles[rank*len(Quintiles)/n]
	}
	return labels
}

// IsPoor reports whether a quintile label is one of the two poorest.
func IsPoor(quintile string) bool {
	return quintile == Q1 || quintile == Q2
}

func idAt(ids []string, i int) string {
	if i < len(ids) {
		return ids[i]
	}
	return ""
}

// Gini returns the Gini coefficient of non-negative scores, 0 for an empty or all-zero
// distribution.
func Gini(scores []float64) float64 {
	n := len(scores)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	var cum, sumCum float64
	for _, v := range sorted {
		cum += v
		sumCum += cum
	}
	if cum <= 0 {
		return 0
	}
	g := (float64(n) + 1 - 2*sumCum/cum) / float64(n)
	if g < 0 {
		return 0
	}
	return g
}
