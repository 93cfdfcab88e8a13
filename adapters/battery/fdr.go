package battery

import (
	"math"
	"sort"
)

// MethodBH names the Benjamini-Hochberg procedure in result tables
const MethodBH = "BH"

// BenjaminiHochberg returns step-up adjusted q-values in input order.
// q(i) = min over j >= i of p(j)*m/j, clamped to [0,1]. Non-finite p-values
// count as 1.
func BenjaminiHochberg(pValues []float64) []float64 {
	m := len(pValues)
	q := make([]float64, m)
	if m == 0 {
		return q
	}

	type indexed struct {
		p     float64
		index int
	}
	ranked := make([]indexed, m)
	for i, p := range pValues {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			p = 1
		}
		ranked[i] = indexed{p: math.Min(1, math.Max(0, p)), index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].p < ranked[j].p })

	running := 1.0
	for k := m - 1; k >= 0; k-- {
		adjusted := ranked[k].p * float64(m) / float64(k+1)
		if adjusted < running {
			running = adjusted
		}
		q[ranked[k].index] = math.Min(1, math.Max(0, running))
	}
	return q
}
