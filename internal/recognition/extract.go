package recognition

import (
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/text/width"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// ExtractNumbers returns the distinct integers spelled by maximal digit runs
// in text, ascending. Full-width digits count as digits; runs too large for
// an int are dropped.
func ExtractNumbers(text string) []int {
	folded := width.Fold.String(text)

	seen := make(map[int]struct{})
	for _, run := range digitRun.FindAllString(folded, -1) {
		n, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		seen[n] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}
	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
