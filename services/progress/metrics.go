// Package progress computes completion and grade statistics on read.
//
// Every figure is derived from enrollment, material, assignment and
// submission rows at request time; nothing is stored. Empty inputs give 0.
package progress

// Percentage returns done/total as a whole percent, rounded half up and
// clamped to [0,100]. A zero total yields 0.
func Percentage(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	pct := (done*200 + total) / (2 * total)
	if pct > 100 {
		return 100
	}
	return pct
}

// Average returns the rounded-half-up mean of values, 0 for an empty slice.
// Callers pass only grades that are set.
func Average(values []int) int {
	n := len(values)
	if n == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return (2*sum + n) / (2 * n)
}

// Overall combines assignment and material completion into one score.
func Overall(assignmentPct, materialPct int) int {
	return Average([]int{clamp(assignmentPct), clamp(materialPct)})
}

// UniqueIDs drops repeated ids, keeping first-seen order. Items linked to
// several classes come back once per class from join queries.
func UniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MaterialProgress maps a material's state to the 0/50/100 shown to students.
func MaterialProgress(accessed, completed bool) int {
	switch {
	case completed:
		return 100
	case accessed:
		return 50
	}
	return 0
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
