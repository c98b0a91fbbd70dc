package intel

import "strings"

// Bucket mapping matches parsed figures onto the caller's dropdown lists. The
// caller supplies the exact candidate strings; matching is by the range
// fragment so cosmetic variations ("10-50億円" vs "10-50億") still resolve.

// MapRevenueToRange maps a revenue figure in 億円 onto the caller's revenue
// range list. Returns "" when no candidate matches.
func MapRevenueToRange(oku float64, ranges []string) string {
	switch {
	case oku < 1:
		return findRange(ranges, "1億円未満")
	case oku < 5:
		return findRange(ranges, "1-5億")
	case oku < 10:
		return findRange(ranges, "5-10億")
	case oku < 50:
		return findRange(ranges, "10-50億")
	case oku < 100:
		return findRange(ranges, "50-100億")
	case oku < 500:
		return findRange(ranges, "100-500億")
	default:
		return findRange(ranges, "500億円以上")
	}
}

// MapEmployeesToRange maps a headcount onto the caller's employee range list.
func MapEmployeesToRange(n int, ranges []string) string {
	switch {
	case n <= 9:
		return findRange(ranges, "1-9")
	case n <= 29:
		return findRange(ranges, "10-29")
	case n <= 49:
		return findRange(ranges, "30-49")
	case n <= 99:
		return findRange(ranges, "50-99")
	case n <= 299:
		return findRange(ranges, "100-299")
	case n <= 499:
		return findRange(ranges, "300-499")
	case n <= 999:
		return findRange(ranges, "500-999")
	default:
		return findRange(ranges, "1000")
	}
}

// IsExactRange reports whether s is an exact member of ranges.
func IsExactRange(s string, ranges []string) bool {
	for _, r := range ranges {
		if r == s {
			return true
		}
	}
	return false
}

func findRange(ranges []string, fragment string) string {
	for _, r := range ranges {
		if strings.Contains(r, fragment) {
			return r
		}
	}
	return ""
}
