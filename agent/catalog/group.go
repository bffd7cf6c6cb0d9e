package catalog

import (
	"sort"

	"github.com/samber/lo"
)

// otherGroup collects candidates with an empty value so group counts always
// add up to the candidate total.
const otherGroup = "другое"

type group struct {
	name  string
	count int
}

// groupBy picks the first narrowing field that is not filtered yet and splits
// the candidates into at least two groups. Group names come from the data.
func (a *Agent) groupBy(candidates []candidate, filters map[string]string) (string, []group, bool) {
	for _, field := range groupOrder {
		if _, filtered := filters[field]; filtered {
			continue
		}
		counts := lo.CountValuesBy(candidates, func(c candidate) string {
			if v := c.value(a.schema, field); v != "" {
				return v
			}
			return otherGroup
		})
		distinct := len(counts)
		if _, ok := counts[otherGroup]; ok {
			distinct--
		}
		if distinct < 2 {
			continue
		}
		return field, sortGroups(counts), true
	}
	return "", nil, false
}

func sortGroups(counts map[string]int) []group {
	groups := make([]group, 0, len(counts))
	for name, n := range counts {
		groups = append(groups, group{name: name, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if (gi.name == otherGroup) != (gj.name == otherGroup) {
			return gj.name == otherGroup
		}
		if gi.count != gj.count {
			return gi.count > gj.count
		}
		return gi.name < gj.name
	})
	return groups
}
