package render

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var digitRuns = regexp.MustCompile(`(\d+)`)

// SortNatural orders image paths by natural comparison of their base names:
// digit runs compare numerically, everything else case-insensitively. This is
// how uploaded image sets get their page order ("page2" before "page10").
func SortNatural(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return naturalLess(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})
}

func naturalLess(a, b string) bool {
	as := splitNatural(a)
	bs := splitNatural(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aIsNum := parseUint(as[i])
		bn, bIsNum := parseUint(bs[i])
		switch {
		case aIsNum && bIsNum:
			if an != bn {
				return an < bn
			}
		case aIsNum:
			return true // numbers sort before text
		case bIsNum:
			return false
		default:
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

func splitNatural(s string) []string {
	s = strings.ToLower(s)
	parts := digitRuns.Split(s, -1)
	nums := digitRuns.FindAllString(s, -1)
	out := make([]string, 0, len(parts)+len(nums))
	for i, p := range parts {
		if p != "" {
			out = append(out, p)
		}
		if i < len(nums) {
			out = append(out, nums[i])
		}
	}
	return out
}

func parseUint(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}
