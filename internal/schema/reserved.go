package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// reservations holds reserved field (or enum value) numbers and names.
type reservations struct {
	numbers []int32
	names   []string
}

func (r *reservations) reserve(numbers ...int32) {
	r.numbers = append(r.numbers, numbers...)
}

func (r *reservations) reserveNames(names ...string) {
	r.names = append(r.names, names...)
}

func (r *reservations) hasNumber(n int32) bool {
	return slices.Contains(r.numbers, n)
}

func (r *reservations) hasName(name string) bool {
	return slices.Contains(r.names, name)
}

// emit writes "reserved" statements. Numbers are sorted and consecutive runs
// collapsed into ranges; names keep declaration order.
func (r *reservations) emit(w *SchemaWriter) {
	if len(r.numbers) > 0 {
		w.Linef("reserved %s;", formatRanges(r.numbers))
	}
	if len(r.names) > 0 {
		quoted := make([]string, len(r.names))
		for i, name := range r.names {
			quoted[i] = strconv.Quote(name)
		}
		w.Linef("reserved %s;", strings.Join(quoted, ", "))
	}
}

func formatRanges(numbers []int32) string {
	sorted := slices.Clone(numbers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var parts []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if j == i {
			parts = append(parts, strconv.Itoa(int(sorted[i])))
		} else {
			parts = append(parts, fmt.Sprintf("%d to %d", sorted[i], sorted[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
