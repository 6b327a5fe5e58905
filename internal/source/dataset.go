package source

import (
	"math"
	"strconv"
	"strings"
)

// Column names shared by the remote query and local files.
const (
	ColYear      = "ano"
	ColRegion    = "uf"
	ColSex       = "sexo"
	ColRace      = "cor_raca"
	ColAge       = "idade"
	ColSchooling = "anos_estudo"
	ColIncome    = "renda_trabalho_principal"
)

// Columns lists the required columns in query order.
var Columns = []string{ColYear, ColRegion, ColSex, ColRace, ColAge, ColSchooling, ColIncome}

// Provenance tags.
const (
	ProvenanceRemote    = "basedosdados"
	ProvenanceLocalCSV  = "local_csv"
	ProvenanceLocalXLSX = "local_xlsx"
)

// Record is one respondent observation. Numeric fields hold NaN when the
// value is missing; Region is empty when missing.
type Record struct {
	Year      float64
	Region    string
	Sex       float64
	Race      float64
	Age       float64
	Schooling float64
	Income    float64
}

// Dataset is an ordered collection of records from one source.
type Dataset struct {
	Records    []Record
	Provenance string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Table is the uniform raw shape returned by every source: a header and
// string cells, with "" standing for NULL.
type Table struct {
	Header []string
	Rows   [][]string
}

// ToDataset maps table columns by name and parses each row into a Record.
// Cells that do not parse as numbers are treated as missing.
func (t *Table) ToDataset(provenance string) (*Dataset, error) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[normalizeHeader(h)] = i
	}
	var missing []string
	pos := make([]int, len(Columns))
	for i, c := range Columns {
		j, ok := idx[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		pos[i] = j
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Header: t.Header}
	}
	cell := func(row []string, col int) string {
		j := pos[col]
		if j >= len(row) {
			return ""
		}
		return row[j]
	}
	ds := &Dataset{Records: make([]Record, 0, len(t.Rows)), Provenance: provenance}
	for _, row := range t.Rows {
		ds.Records = append(ds.Records, Record{
			Year:      parseNumber(cell(row, 0)),
			Region:    strings.TrimSpace(cell(row, 1)),
			Sex:       parseNumber(cell(row, 2)),
			Race:      parseNumber(cell(row, 3)),
			Age:       parseNumber(cell(row, 4)),
			Schooling: parseNumber(cell(row, 5)),
			Income:    parseNumber(cell(row, 6)),
		})
	}
	return ds, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// parseNumber returns NaN for null markers and unparseable input.
func parseNumber(s string) float64 {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "", "na", "nan", "null", "none":
		return math.NaN()
	}
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}
