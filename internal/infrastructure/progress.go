package infrastructure

import (
	"regexp"
	"strconv"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// ParsePercent extracts the first "NN[.N]%" figure of a line, clamped to
// [0,100]. ok is false when the line has no parseable percentage.
func ParsePercent(line string) (percent float64, ok bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return domain.ClampPercent(v), true
}
