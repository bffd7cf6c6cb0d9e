package catalog

import (
	"regexp"
	"strconv"
	"strings"

	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var (
	numberPattern = regexp.MustCompile(`\d+`)
	// A message made only of numbers and separators, e.g. "1, 3" or "№2 и 5".
	bareNumbersPattern = regexp.MustCompile(`^[\s\d,;.#№и&+]*\d[\s\d,;.#№и&+]*$`)
)

const maxSelectionNumber = 1_000_000

// selectionNumbers extracts the numbers a customer picked. The classifier's
// selection entity wins; a bare numeric message is read as a selection too.
func selectionNumbers(message string, delta statex.Entities) []int {
	if raw := strings.TrimSpace(delta.Get(statex.EntitySelection)); raw != "" {
		return parseNumbers(raw)
	}
	if bareNumbersPattern.MatchString(strings.TrimSpace(message)) {
		return parseNumbers(message)
	}
	return nil
}

func parseNumbers(s string) []int {
	matches := numberPattern.FindAllString(s, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 || n > maxSelectionNumber {
			continue
		}
		out = append(out, n)
	}
	return out
}
