package domain

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DPClim monthly CSV column names.
const (
	columnDate          = "DATE"
	columnPrecipitation = "RR"
	columnAverageTemp   = "TMM"
	columnSunnyDays     = "NBSIGMA80"
)

// mean is a streaming arithmetic mean.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

// value returns nil when nothing was added.
func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type monthAccumulator struct {
	precipitation mean
	averageTemp   mean
	sunnyDays     mean
}

// AggregateMonthly pools DPClim monthly extracts of several years and returns
// the per-calendar-month mean of precipitation, mean temperature and sunny-day
// count. The result always holds months 1 through 12; fields with no sample
// are nil. Rows with a malformed DATE are skipped, and each field only counts
// rows where that field itself parses.
func AggregateMonthly(csvByYear map[int]string) map[int]MonthlyFields {
	var acc [12]monthAccumulator

	years := make([]int, 0, len(csvByYear))
	for y := range csvByYear {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		accumulateCSV(&acc, csvByYear[y])
	}

	out := make(map[int]MonthlyFields, 12)
	for i := range acc {
		out[i+1] = MonthlyFields{
			Precipitation: acc[i].precipitation.value(),
			AverageTemp:   acc[i].averageTemp.value(),
			SunnyDays:     acc[i].sunnyDays.value(),
		}
	}
	return out
}

func accumulateCSV(acc *[12]monthAccumulator, data string) {
	if strings.TrimSpace(data) == "" {
		return
	}

	r := csv.NewReader(strings.NewReader(data))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return
	}
	cols := columnIndex(header)
	dateCol, ok := cols[columnDate]
	if !ok {
		return
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			continue
		}

		month, ok := parseMonth(field(row, dateCol))
		if !ok {
			continue
		}
		a := &acc[month-1]
		if v, ok := parseDecimal(fieldByName(row, cols, columnPrecipitation)); ok {
			a.precipitation.add(v)
		}
		if v, ok := parseDecimal(fieldByName(row, cols, columnAverageTemp)); ok {
			a.averageTemp.add(v)
		}
		if v, ok := parseDecimal(fieldByName(row, cols, columnSunnyDays)); ok {
			a.sunnyDays.add(v)
		}
	}
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[strings.ToUpper(h)] = i
	}
	return cols
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func fieldByName(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return field(row, i)
}

// parseMonth extracts MM from a YYYYMM date.
func parseMonth(date string) (int, bool) {
	if len(date) != 6 {
		return 0, false
	}
	if _, err := strconv.Atoi(date[:4]); err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(date[4:])
	if err != nil || m < 1 || m > 12 {
		return 0, false
	}
	return m, true
}

// parseDecimal parses a French-formatted decimal ("10,5"). Empty cells are absent.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
