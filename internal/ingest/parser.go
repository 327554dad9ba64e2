package ingest

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

// columnIndexes locates each interpreted field in a header row.
// -1 means the column was not found.
type columnIndexes struct {
	unitCode      int
	beds          int
	sizeSqft      int
	price         int
	status        int
	serviceCharge int
	building      int
	floor         int
}

// Parse turns raw spreadsheet records into PriceListRow candidates. The first
// record is treated as the header. Parsing never fails: blank or malformed
// price/size cells coerce to 0 and are caught later as missing_data anomalies,
// rows with fewer than 2 columns are silently dropped, and every row keeps its
// original column values verbatim in Raw.
func Parse(records [][]string, mapping *HeaderMapping) []model.PriceListRow {
	if len(records) == 0 {
		return nil
	}

	cols := resolveColumns(records[0], mapping)
	if cols.unitCode < 0 {
		zap.L().Warn("ingest: no unit-code column recognized, using first column",
			zap.Strings("header", records[0]),
		)
		cols.unitCode = 0
	}

	var rows []model.PriceListRow
	for i, record := range records[1:] {
		if len(record) < 2 {
			continue
		}

		row := model.PriceListRow{
			RowNumber: i + 1,
			Raw:       append([]string(nil), record...),
		}

		row.UnitCode = strings.TrimSpace(cell(record, cols.unitCode))
		if row.UnitCode == "" {
			continue
		}

		row.Beds = parseBeds(cell(record, cols.beds))
		row.SizeSqft = parseSize(cell(record, cols.sizeSqft))
		row.Status = model.ParseUnitStatus(cell(record, cols.status))
		row.Building = strings.TrimSpace(cell(record, cols.building))
		if f, err := strconv.Atoi(strings.TrimSpace(cell(record, cols.floor))); err == nil {
			row.Floor = f
		}

		if price := model.ParsePrice(cell(record, cols.price)); price.OK {
			row.Price = price.Value
		}
		if sc := model.ParsePrice(cell(record, cols.serviceCharge)); sc.OK {
			v := sc.Value
			row.ServiceCharge = &v
		}

		rows = append(rows, row)
	}
	return rows
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// resolveColumns finds field columns via the developer mapping when present,
// falling back to keyword matching on header names.
func resolveColumns(header []string, mapping *HeaderMapping) columnIndexes {
	cols := columnIndexes{
		unitCode: -1, beds: -1, sizeSqft: -1, price: -1,
		status: -1, serviceCharge: -1, building: -1, floor: -1,
	}

	for i, h := range header {
		if mapping != nil {
			switch {
			case cols.unitCode < 0 && matches(h, mapping.UnitCode):
				cols.unitCode = i
			case cols.beds < 0 && matches(h, mapping.Beds):
				cols.beds = i
			case cols.sizeSqft < 0 && matches(h, mapping.SizeSqft):
				cols.sizeSqft = i
			case cols.price < 0 && matches(h, mapping.Price):
				cols.price = i
			case cols.status < 0 && matches(h, mapping.Status):
				cols.status = i
			case cols.serviceCharge < 0 && matches(h, mapping.ServiceCharge):
				cols.serviceCharge = i
			case cols.building < 0 && matches(h, mapping.Building):
				cols.building = i
			case cols.floor < 0 && matches(h, mapping.Floor):
				cols.floor = i
			}
			continue
		}

		lower := strings.ToLower(h)
		switch {
		case cols.unitCode < 0 && containsAny(lower, "unit", "apt", "plot", "flat"):
			cols.unitCode = i
		case cols.serviceCharge < 0 && containsAny(lower, "service"):
			cols.serviceCharge = i
		case cols.price < 0 && containsAny(lower, "price", "asking"):
			cols.price = i
		case cols.beds < 0 && containsAny(lower, "bed"):
			cols.beds = i
		case cols.sizeSqft < 0 && containsAny(lower, "sqft", "sq ft", "size", "area"):
			cols.sizeSqft = i
		case cols.status < 0 && containsAny(lower, "status", "avail"):
			cols.status = i
		case cols.building < 0 && containsAny(lower, "building", "block", "core"):
			cols.building = i
		case cols.floor < 0 && containsAny(lower, "floor", "level"):
			cols.floor = i
		}
	}

	return cols
}

func parseBeds(raw string) int {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || strings.Contains(s, "studio") {
		return 0
	}
	// "2 bed", "2B", "2" all reduce to the leading digits.
	digits := strings.TrimFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseSize(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("sqft", "", "sq ft", "", "ft2", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
