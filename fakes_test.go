package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/internal/warehouse"
)

var testTables = config.BillingTables{
	Aggregate:  "proj.billing_aggregate.aggregate",
	Extended:   "proj.billing_aggregate.aggregate_extended",
	GcpBilling: "proj.billing.gcp_billing",
	Raw:        "proj.billing.gcp_billing_export_raw",
}

type recordedQuery struct {
	text   string
	params map[string]interface{}
}

// fakeWarehouse answers queries with canned rows chosen by respond and records every query.
type fakeWarehouse struct {
	mu      sync.Mutex
	queries []recordedQuery
	respond func(query string) ([]map[string]bigquery.Value, error)
	conns   int
}

func (w *fakeWarehouse) Connect() warehouse.Runner {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conns++
	return &fakeRunner{w: w, id: fmt.Sprintf("conn-%d", w.conns)}
}

func (w *fakeWarehouse) recorded() []recordedQuery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recordedQuery(nil), w.queries...)
}

type fakeRunner struct {
	w    *fakeWarehouse
	id   string
	cost float64
}

func (r *fakeRunner) Run(_ context.Context, query string, params []bigquery.QueryParameter) (warehouse.RowIterator, error) {
	r.w.mu.Lock()
	rec := recordedQuery{text: query, params: make(map[string]interface{}, len(params))}
	for _, p := range params {
		rec.params[p.Name] = p.Value
	}
	r.w.queries = append(r.w.queries, rec)
	respond := r.w.respond
	r.w.mu.Unlock()

	r.cost += 0.01
	if respond == nil {
		return &sliceIterator{}, nil
	}
	rows, err := respond(query)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{rows: rows}, nil
}

func (r *fakeRunner) Cost() float64 {
	return r.cost
}

func (r *fakeRunner) ID() string {
	return r.id
}

type sliceIterator struct {
	rows []map[string]bigquery.Value
	pos  int
}

func (it *sliceIterator) Next(dst interface{}) error {
	if it.pos >= len(it.rows) {
		return iterator.Done
	}
	row := dst.(*map[string]bigquery.Value)
	*row = it.rows[it.pos]
	it.pos++
	return nil
}

func isLastLoadedQuery(query string) bool {
	return strings.Contains(query, "AS last_loaded_day")
}

// scalarParam returns the host value bound to a scalar parameter.
func scalarParam(q recordedQuery, name string) interface{} {
	v, ok := q.params[name].(*bigquery.QueryParameterValue)
	if !ok {
		return nil
	}
	return v.Value
}
