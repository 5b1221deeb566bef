package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePageRange expands a selection like "1-3,5" into 1-based page
// numbers, clamped to the document's page count. An empty selection
// means all pages. Reversed ranges and out-of-bounds segments clamp
// rather than error; a segment that clamps to nothing is skipped.
func ParsePageRange(spec string, totalPages int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var pages []int

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		start, end := 0, 0
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			var err error
			if start, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page number %q", part)
			}
			start, end = n, n
		}

		if start < 1 {
			start = 1
		}
		if end > totalPages {
			end = totalPages
		}
		for p := start; p <= end; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("page selection %q matches no pages (document has %d)", spec, totalPages)
	}
	return pages, nil
}
