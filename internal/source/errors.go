package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataUnavailable is returned when no source produced a dataset.
var ErrDataUnavailable = errors.New("no data source available: provide --billing-project or a local CSV file")

// SchemaError indicates a table without the required columns.
type SchemaError struct {
	Missing []string
	Header  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns %s (got %s)", strings.Join(e.Missing, ", "), strings.Join(e.Header, ", "))
}

// QueryError wraps a failed remote query step.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	if e == nil {
		return "query failed"
	}
	if e.Op != "" {
		return fmt.Sprintf("remote query %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote query: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
