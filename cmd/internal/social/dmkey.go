package social

// SortPair returns the two user ids in canonical order (a < b).
func SortPair(x, y string) (string, string) {
	if x <= y {
		return x, y
	}
	return y, x
}

// DMKey is the canonical sorted-pair identifier enforcing one direct
// conversation per unordered user pair.
func DMKey(x, y string) string {
	a, b := SortPair(x, y)
	return a + ":" + b
}
