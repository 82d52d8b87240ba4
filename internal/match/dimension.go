package match

import (
	"regexp"
	"strconv"

	"github.com/sells-group/product-match/internal/model"
)

// NeutralDimensionScore is returned when no dimension field is comparable on
// both sides. At the 0.3 dimension weight it neither pushes a pair across the
// auto-match threshold nor rules one out; it only keeps missing dimension
// data from dragging the blended score toward 0.
const NeutralDimensionScore = 0.5

var leadingNumberRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// parseMagnitude extracts the first decimal numeral from a free-text
// dimension value ("120 cm" -> 120, `57 7/8"` -> 57). The unit suffix and any
// fractional tail are ignored; retailers format these fields too loosely to
// parse more aggressively.
func parseMagnitude(s *string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	m := leadingNumberRe.FindString(*s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DimensionSimilarity scores two records' dimension fields in [0,1]. Each of
// the five fields contributes min/max of the two magnitudes; a field where
// either side fails to parse is skipped entirely rather than scored 0. Two
// exact zeros count as 1. With no comparable fields the neutral constant is
// returned.
func DimensionSimilarity(a, b model.Dimensions) float64 {
	fa := a.Fields()
	fb := b.Fields()

	var sum float64
	var n int
	for i := range fa {
		va, okA := parseMagnitude(fa[i])
		vb, okB := parseMagnitude(fb[i])
		if !okA || !okB {
			continue
		}

		switch {
		case va == 0 && vb == 0:
			sum++
		case va > vb:
			sum += vb / va
		default:
			sum += va / vb
		}
		n++
	}

	if n == 0 {
		return NeutralDimensionScore
	}
	return sum / float64(n)
}
