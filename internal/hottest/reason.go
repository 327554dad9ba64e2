package hottest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxReasonSentences caps how many component sentences make it into the
// reason text; the rest still count toward the score.
const maxReasonSentences = 4

var gbp = message.NewPrinter(language.BritishEnglish)

// buildReason assembles the marketing-style justification for a winner:
// the strongest component sentences, a numeric summary, and a call to action.
func buildReason(w *scoredUnit) string {
	comps := append([]component(nil), w.components...)
	sort.SliceStable(comps, func(i, j int) bool { return comps[i].points > comps[j].points })
	if len(comps) > maxReasonSentences {
		comps = comps[:maxReasonSentences]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Unit %s is the pick of the development. ", w.unit.UnitNumber)
	for _, c := range comps {
		b.WriteString(c.sentence)
		b.WriteString(" ")
	}
	b.WriteString(summarySentence(w))
	b.WriteString(" Book a viewing before it goes.")
	return b.String()
}

func summarySentence(w *scoredUnit) string {
	u := w.unit
	parts := []string{fmt.Sprintf("%d bed", u.Beds)}
	if u.SizeSqft > 0 {
		parts = append(parts, gbp.Sprintf("%v sq ft", int(math.Round(u.SizeSqft))))
	}
	if u.Floor > 0 {
		parts = append(parts, fmt.Sprintf("floor %d", u.Floor))
	}
	parts = append(parts, gbp.Sprintf("£%v", int64(math.Round(u.Price))))
	if psf := u.PricePerSqft(); psf > 0 {
		parts = append(parts, gbp.Sprintf("£%v/sq ft", int(math.Round(psf))))
	}
	return "At a glance: " + strings.Join(parts, ", ") + "."
}

func discountSentence(psf, meanPSF float64) string {
	pct := (meanPSF - psf) / meanPSF * 100
	return gbp.Sprintf("At £%v per sq ft it sits %.0f%% below the average for its bedroom count.",
		int(math.Round(psf)), pct)
}

func floorSentence(floor int) string {
	if floor >= 10 {
		return fmt.Sprintf("Floor %d puts it high above the neighbouring rooftops.", floor)
	}
	return fmt.Sprintf("Floor %d lifts it clear of street level.", floor)
}

func sizeSentence(size, meanSize float64) string {
	pct := (size - meanSize) / meanSize * 100
	return fmt.Sprintf("At %.0f sq ft it is %.0f%% larger than comparable units.", size, pct)
}

func scarcitySentence(beds, remaining int) string {
	label := fmt.Sprintf("%d-bed", beds)
	if beds == 0 {
		label = "studio"
	}
	if remaining == 1 {
		return fmt.Sprintf("It is the last %s left in the development.", label)
	}
	return fmt.Sprintf("Only %d %s units remain.", remaining, label)
}

func completionSentence(year int) string {
	return fmt.Sprintf("Completion is due in %d.", year)
}
