package describe

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

var gbp = message.NewPrinter(language.BritishEnglish)

// buildPrompt flattens a development's live facts into the user message the
// copywriter model works from. Only verifiable inventory and insight data
// goes in; anything absent is simply omitted.
func buildPrompt(dev *model.Development, units []model.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Development: %s\n", dev.Name)
	if dev.Postcode != "" {
		fmt.Fprintf(&b, "Postcode: %s\n", dev.Postcode)
	}

	if line := availabilityLine(units); line != "" {
		b.WriteString(line)
	}
	for _, line := range startingPriceLines(dev.StartingPrices) {
		b.WriteString(line)
	}
	for _, line := range insightLines(dev.Insights) {
		b.WriteString(line)
	}
	return b.String()
}

func availabilityLine(units []model.Unit) string {
	byBeds := map[int]int{}
	for _, u := range units {
		if u.Sellable() {
			byBeds[u.Beds]++
		}
	}
	if len(byBeds) == 0 {
		return ""
	}

	beds := make([]int, 0, len(byBeds))
	for b := range byBeds {
		beds = append(beds, b)
	}
	sort.Ints(beds)

	parts := make([]string, 0, len(beds))
	for _, b := range beds {
		parts = append(parts, fmt.Sprintf("%d x %s", byBeds[b], bedLabel(b)))
	}
	return "Available homes: " + strings.Join(parts, ", ") + "\n"
}

func startingPriceLines(prices map[int]float64) []string {
	beds := make([]int, 0, len(prices))
	for b := range prices {
		beds = append(beds, b)
	}
	sort.Ints(beds)

	lines := make([]string, 0, len(beds))
	for _, b := range beds {
		lines = append(lines, gbp.Sprintf("Prices from £%.0f for a %s\n", prices[b], bedLabel(b)))
	}
	return lines
}

func insightLines(ins *model.AreaInsights) []string {
	if ins == nil || ins.Estimated {
		// Estimated figures are for internal triage, not marketing claims.
		return nil
	}
	var lines []string
	if ins.CrimeBand != "" {
		lines = append(lines, fmt.Sprintf("Local crime level: %s\n", ins.CrimeBand))
	}
	if ins.AirQualityBand != "" {
		lines = append(lines, fmt.Sprintf("Air quality: %s\n", ins.AirQualityBand))
	}
	if ins.GreenSpaceBand != "" {
		lines = append(lines, fmt.Sprintf("Green space nearby: %s (%.1f hectares)\n",
			ins.GreenSpaceBand, ins.GreenSpaceHectares))
	}
	if ins.SchoolsOutstanding > 0 || ins.SchoolsGood > 0 {
		lines = append(lines, fmt.Sprintf("Schools within a kilometre: %d Outstanding, %d Good\n",
			ins.SchoolsOutstanding, ins.SchoolsGood))
	}
	return lines
}

func bedLabel(beds int) string {
	if beds == 0 {
		return "studio"
	}
	return fmt.Sprintf("%d bed", beds)
}
