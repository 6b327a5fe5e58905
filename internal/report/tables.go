package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"

	"github.com/KaramelBytes/incomegap/internal/analysis"
)

var overallHeader = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

func groupHeader(key string) []string {
	return []string{key, "count", "mean", "median", "std"}
}

func overallRow(s analysis.Summary, format func(float64) string) []string {
	return []string{
		strconv.Itoa(s.Count), format(s.Mean), format(s.Std), format(s.Min),
		format(s.Q25), format(s.Median), format(s.Q75), format(s.Max),
	}
}

func groupRows(groups []analysis.GroupSummary, format func(float64) string) [][]string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.Label, strconv.Itoa(g.Count), format(g.Mean), format(g.Median), format(g.Std)}
	}
	return rows
}

// fullPrecision is the CSV cell format: shortest exact representation,
// empty for NaN.
func fullPrecision(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CSV encodes a header and rows.
func CSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DescriptiveCSVs renders the overall, by-gender and by-race tables.
func DescriptiveCSVs(d *analysis.Descriptive) (overall, byGender, byRace []byte, err error) {
	if overall, err = CSV(overallHeader, [][]string{overallRow(d.Overall, fullPrecision)}); err != nil {
		return nil, nil, nil, err
	}
	if byGender, err = CSV(groupHeader("gender"), groupRows(d.ByGender, fullPrecision)); err != nil {
		return nil, nil, nil, err
	}
	if byRace, err = CSV(groupHeader("race"), groupRows(d.ByRace, fullPrecision)); err != nil {
		return nil, nil, nil, err
	}
	return overall, byGender, byRace, nil
}
