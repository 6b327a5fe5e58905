package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	table *Table
	err   error
	calls int
	got   Query
}

func (f *fakeQuerier) Query(_ context.Context, _ string, q Query) (*Table, error) {
	f.calls++
	f.got = q
	return f.table, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadPrefersRemote(t *testing.T) {
	q := &fakeQuerier{table: &Table{Header: Columns, Rows: [][]string{{"2022", "SP", "1", "1", "30", "12", "2500"}}}}
	req := Request{
		Year:   2021,
		Limit:  50,
		Remote: &RemoteSource{BillingProject: "my-project", Querier: q},
		Local:  LocalSource{Path: writeFile(t, "data.csv", sampleCSV)},
	}
	ds, err := Load(context.Background(), req, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, ProvenanceRemote, ds.Provenance)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, q.calls)
	assert.Contains(t, q.got.SQL, "@year")
	assert.Equal(t, []Param{{Name: "year", Type: "INT64", Value: "2021"}, {Name: "limit", Type: "INT64", Value: "50"}}, q.got.Params)
}

func TestLoadFallsBackWhenRemoteUnreachable(t *testing.T) {
	q := &fakeQuerier{err: &QueryError{Op: "jobs.query", Err: errors.New("dial tcp: connection refused")}}
	req := Request{
		Year:   2022,
		Limit:  10000,
		Remote: &RemoteSource{BillingProject: "my-project", Querier: q},
		Local:  LocalSource{Path: writeFile(t, "data.csv", sampleCSV)},
	}
	ds, err := Load(context.Background(), req, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, ProvenanceLocalCSV, ds.Provenance)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, 1, q.calls)
}

func TestLoadFallsBackWhenRemoteEmptyOrMalformed(t *testing.T) {
	for name, tbl := range map[string]*Table{
		"empty":     {Header: Columns},
		"malformed": {Header: []string{"foo"}, Rows: [][]string{{"1"}}},
	} {
		t.Run(name, func(t *testing.T) {
			req := Request{
				Remote: &RemoteSource{BillingProject: "p", Querier: &fakeQuerier{table: tbl}},
				Local:  LocalSource{Path: writeFile(t, "data.csv", sampleCSV)},
			}
			ds, err := Load(context.Background(), req, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, ProvenanceLocalCSV, ds.Provenance)
		})
	}
}

func TestLoadSkipsRemoteWithoutBillingProject(t *testing.T) {
	q := &fakeQuerier{}
	req := Request{
		Remote: &RemoteSource{Querier: q},
		Local:  LocalSource{Path: writeFile(t, "data.csv", sampleCSV)},
	}
	_, err := Load(context.Background(), req, quietLogger())
	require.NoError(t, err)
	assert.Zero(t, q.calls)
}

func TestLoadDataUnavailable(t *testing.T) {
	req := Request{
		Remote: &RemoteSource{BillingProject: "p", Querier: &fakeQuerier{err: errors.New("auth")}},
		Local:  LocalSource{Path: filepath.Join(t.TempDir(), "missing.csv")},
	}
	_, err := Load(context.Background(), req, quietLogger())
	require.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadLocalSchemaError(t *testing.T) {
	path := writeFile(t, "bad.csv", []string{"a,b", "1,2"})
	_, err := Load(context.Background(), Request{Local: LocalSource{Path: path}}, quietLogger())
	require.ErrorIs(t, err, ErrDataUnavailable)
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestLocalProvenance(t *testing.T) {
	assert.Equal(t, ProvenanceLocalCSV, LocalSource{Path: "data/raw/data.csv"}.Provenance())
	assert.Equal(t, ProvenanceLocalXLSX, LocalSource{Path: "data/raw/data.XLSX"}.Provenance())
	assert.Equal(t, ProvenanceRemote, RemoteSource{}.Provenance())
}
