// Package source loads survey microdata from BigQuery or a local file and
// returns it as a Dataset tagged with its provenance.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Source is one place a Dataset can come from. It is implemented only by
// RemoteSource and LocalSource.
type Source interface {
	Provenance() string
	fetch(ctx context.Context, year, limit int) (*Table, error)
}

// RemoteSource queries the public microdata table billed to BillingProject.
type RemoteSource struct {
	BillingProject string
	Querier        Querier
}

// Provenance implements Source.
func (RemoteSource) Provenance() string { return ProvenanceRemote }

func (s RemoteSource) fetch(ctx context.Context, year, limit int) (*Table, error) {
	if s.Querier == nil {
		return nil, &QueryError{Op: "client", Err: errors.New("no querier configured")}
	}
	return s.Querier.Query(ctx, s.BillingProject, MicrodataQuery(year, limit))
}

// LocalSource reads a CSV/TSV or XLSX file that already uses the remote
// column names.
type LocalSource struct {
	Path string
	// Sheet selects an XLSX sheet; empty means the first one.
	Sheet string
}

// Provenance implements Source.
func (s LocalSource) Provenance() string {
	if isXLSX(s.Path) {
		return ProvenanceLocalXLSX
	}
	return ProvenanceLocalCSV
}

func (s LocalSource) fetch(_ context.Context, _ int, limit int) (*Table, error) {
	if s.Path == "" {
		return nil, errors.New("no local file configured")
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("local file %s: %w", s.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("local file %s is a directory", s.Path)
	}
	if isXLSX(s.Path) {
		return ReadXLSX(s.Path, s.Sheet, limit)
	}
	return ReadCSV(s.Path, limit)
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// Request describes what to load.
type Request struct {
	Year  int
	Limit int
	// Remote is tried first when non-nil and BillingProject is set.
	Remote *RemoteSource
	Local  LocalSource
}

// Sources returns the candidate sources in resolution order.
func (r Request) Sources() []Source {
	var out []Source
	if r.Remote != nil && r.Remote.BillingProject != "" {
		out = append(out, *r.Remote)
	}
	return append(out, r.Local)
}

// Load resolves the request to a Dataset. A failing or empty remote source
// is logged and skipped; when no source yields data the error wraps
// ErrDataUnavailable together with the last cause.
func Load(ctx context.Context, req Request, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for _, src := range req.Sources() {
		prov := src.Provenance()
		logger.Info("loading data", slog.String("source", prov), slog.Int("year", req.Year), slog.Int("limit", req.Limit))
		t, err := src.fetch(ctx, req.Year, req.Limit)
		if err == nil {
			var ds *Dataset
			ds, err = t.ToDataset(prov)
			if err == nil && prov == ProvenanceRemote && ds.Len() == 0 {
				err = errors.New("remote query returned no rows")
			}
			if err == nil {
				logger.Info("data loaded", slog.String("source", prov), slog.Int("rows", ds.Len()))
				return ds, nil
			}
		}
		logger.Debug("source unavailable", slog.String("source", prov), slog.String("error", err.Error()))
		lastErr = err
	}
	if lastErr == nil {
		return nil, ErrDataUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, lastErr)
}
