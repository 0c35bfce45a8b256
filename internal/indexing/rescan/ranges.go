package rescan

import (
	"sort"

	"github.com/vietddude/tradesync/internal/core/domain"
)

// overlaps checks if two ranges overlap or are adjacent.
func overlaps(a, b domain.BlockRange) bool {
	return a.From <= b.To+1 && b.From <= a.To+1
}

// MergeRanges merges overlapping and adjacent ranges, sorted by start.
func MergeRanges(ranges []domain.BlockRange) []domain.BlockRange {
	if len(ranges) <= 1 {
		return ranges
	}

	sorted := append([]domain.BlockRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].From < sorted[j].From
	})

	merged := []domain.BlockRange{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if overlaps(*last, current) {
			last.To = max(last.To, current.To)
		} else {
			merged = append(merged, current)
		}
	}
	return merged
}
