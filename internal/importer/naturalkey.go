package importer

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/trackarr/internal/models"
	"golang.org/x/text/cases"
)

// nearMissDistance is the largest case-folded edit distance reported as a hint
const nearMissDistance = 2

// NaturalKey is the key rows are matched on within one run: the raw title,
// scoped by lot so a movie and a show sharing a title stay apart. A stronger
// key only needs to change this function.
func NaturalKey(lot models.MediaLot, title string) string {
	return string(lot) + "\x00" + title
}

// SameNaturalKey reports whether two rows name the same draft
func SameNaturalKey(lotA models.MediaLot, a string, lotB models.MediaLot, b string) bool {
	return NaturalKey(lotA, a) == NaturalKey(lotB, b)
}

// nearMiss reports titles of one lot that differ as keys but look alike once
// case-folded. These are only logged; they never merge.
func nearMiss(lot models.MediaLot, a, b string) bool {
	if SameNaturalKey(lot, a, lot, b) {
		return false
	}
	// a Caser keeps state, so each comparison gets its own
	fold := cases.Fold()
	fa, fb := fold.String(a), fold.String(b)
	// the edit distance is at least the length difference
	if abs(utf8.RuneCountInString(fa)-utf8.RuneCountInString(fb)) > nearMissDistance {
		return false
	}
	return levenshtein.ComputeDistance(fa, fb) <= nearMissDistance
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
