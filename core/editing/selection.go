package editing

import "sort"

// Normalize 去重、排序并丢弃超出 1..n 的序号
func Normalize(selection []int, n int) []int {
	if len(selection) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(selection))
	out := make([]int, 0, len(selection))
	for _, s := range selection {
		if s < 1 || s > n || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// SelectRange 返回 a..b（含）的连续选择
func SelectRange(a, b int) []int {
	if a > b {
		a, b = b, a
	}
	if a < 1 {
		a = 1
	}
	if b < a {
		return nil
	}
	out := make([]int, 0, b-a+1)
	for i := a; i <= b; i++ {
		out = append(out, i)
	}
	return out
}

// Bounds 返回选择的最小和最大序号
func Bounds(selection []int) (lo, hi int, ok bool) {
	if len(selection) == 0 {
		return 0, 0, false
	}
	lo, hi = selection[0], selection[0]
	for _, s := range selection[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi, true
}
