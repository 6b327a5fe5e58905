package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Querier executes a parameterized query billed to a project and returns
// its rows as a Table.
type Querier interface {
	Query(ctx context.Context, billingProject string, q Query) (*Table, error)
}

// Query is a standard-SQL statement with named parameters (@name).
type Query struct {
	SQL    string
	Params []Param
}

// Param is a named scalar query parameter.
type Param struct {
	Name  string
	Type  string // INT64, STRING, FLOAT64
	Value string
}

// MicrodataTable is the public PNAD Contínua microdata table.
const MicrodataTable = "basedosdados.br_ibge_pnadc.microdados"

// MicrodataQuery selects the study columns for one survey year, skipping
// rows without primary-job income.
func MicrodataQuery(year, limit int) Query {
	sql := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s, %s\nFROM `%s`\nWHERE %s = @year AND %s IS NOT NULL\nLIMIT @limit",
		ColYear, ColRegion, ColSex, ColRace, ColAge, ColSchooling, ColIncome,
		MicrodataTable, ColYear, ColIncome)
	return Query{
		SQL: sql,
		Params: []Param{
			{Name: "year", Type: "INT64", Value: strconv.Itoa(year)},
			{Name: "limit", Type: "INT64", Value: strconv.Itoa(limit)},
		},
	}
}

// BigQueryConfig controls the BigQuery REST client.
type BigQueryConfig struct {
	// CredentialsFile is a service-account JSON key; empty uses Application Default Credentials.
	CredentialsFile string
	Timeout         time.Duration
	RetryMax        int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	// Options are appended to the client options (endpoint overrides in tests).
	Options []option.ClientOption
}

// BigQuery runs queries through the BigQuery v2 REST API.
type BigQuery struct {
	cfg BigQueryConfig
	svc *bigquery.Service
}

// NewBigQuery returns a client with defaults filled in. The underlying
// service is created on first use so that credential problems surface as
// query errors.
func NewBigQuery(cfg BigQueryConfig) *BigQuery {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 4 * time.Second
	}
	return &BigQuery{cfg: cfg}
}

func (b *BigQuery) service(ctx context.Context) (*bigquery.Service, error) {
	if b.svc != nil {
		return b.svc, nil
	}
	opts := []option.ClientOption{option.WithScopes(bigquery.BigqueryScope)}
	if b.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(b.cfg.CredentialsFile))
	}
	opts = append(opts, b.cfg.Options...)
	svc, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, &QueryError{Op: "client", Err: err}
	}
	b.svc = svc
	return svc, nil
}

// Query submits q with jobs.query and pages through jobs.getQueryResults
// until the job is complete and every page is read.
func (b *BigQuery) Query(ctx context.Context, billingProject string, q Query) (*Table, error) {
	if billingProject == "" {
		return nil, &QueryError{Op: "client", Err: errors.New("billing project is empty")}
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	legacy := false
	req := &bigquery.QueryRequest{
		Query:         q.SQL,
		UseLegacySql:  &legacy,
		ParameterMode: "NAMED",
		TimeoutMs:     10000,
	}
	for _, p := range q.Params {
		req.QueryParameters = append(req.QueryParameters, &bigquery.QueryParameter{
			Name:           p.Name,
			ParameterType:  &bigquery.QueryParameterType{Type: p.Type},
			ParameterValue: &bigquery.QueryParameterValue{Value: p.Value},
		})
	}

	var resp *bigquery.QueryResponse
	err = b.retry(ctx, func() error {
		var err error
		resp, err = svc.Jobs.Query(billingProject, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, &QueryError{Op: "jobs.query", Err: err}
	}

	t := &Table{}
	if err := appendPage(t, resp.Schema, resp.Rows); err != nil {
		return nil, &QueryError{Op: "decode", Err: err}
	}
	complete, token := resp.JobComplete, resp.PageToken
	if complete && token == "" {
		return t, nil
	}
	if resp.JobReference == nil {
		return nil, &QueryError{Op: "jobs.query", Err: errors.New("incomplete job without job reference")}
	}
	job := resp.JobReference

	delay := b.cfg.BaseDelay
	for !complete || token != "" {
		if !complete {
			if err := sleepCtx(ctx, capDelay(withJitter(delay), b.cfg.MaxDelay)); err != nil {
				return nil, &QueryError{Op: "jobs.getQueryResults", Err: err}
			}
			delay *= 2
		}
		var page *bigquery.GetQueryResultsResponse
		err := b.retry(ctx, func() error {
			call := svc.Jobs.GetQueryResults(job.ProjectId, job.JobId).Context(ctx)
			if job.Location != "" {
				call = call.Location(job.Location)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			page, err = call.Do()
			return err
		})
		if err != nil {
			return nil, &QueryError{Op: "jobs.getQueryResults", Err: err}
		}
		complete = page.JobComplete
		if !complete {
			continue
		}
		if err := appendPage(t, page.Schema, page.Rows); err != nil {
			return nil, &QueryError{Op: "decode", Err: err}
		}
		token = page.PageToken
	}
	return t, nil
}

// retry runs fn until it succeeds, fails with a non-retryable error, or
// RetryMax attempts are used. Backoff is exponential with jitter.
func (b *BigQuery) retry(ctx context.Context, fn func() error) error {
	backoff := b.cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= b.cfg.RetryMax; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == b.cfg.RetryMax {
			break
		}
		if err := sleepCtx(ctx, capDelay(withJitter(backoff), b.cfg.MaxDelay)); err != nil {
			return err
		}
		backoff *= 2
	}
	return lastErr
}

func appendPage(t *Table, schema *bigquery.TableSchema, rows []*bigquery.TableRow) error {
	if len(t.Header) == 0 && schema != nil {
		for _, f := range schema.Fields {
			t.Header = append(t.Header, f.Name)
		}
	}
	if len(rows) > 0 && len(t.Header) == 0 {
		return errors.New("rows returned without schema")
	}
	for _, r := range rows {
		row := make([]string, len(r.F))
		for i, c := range r.F {
			row[i] = cellString(c)
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

func cellString(c *bigquery.TableCell) string {
	if c == nil || c.V == nil {
		return ""
	}
	switch v := c.V.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || (gerr.Code >= 500 && gerr.Code <= 599)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
