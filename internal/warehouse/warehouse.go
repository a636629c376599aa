/*
Copyright 2024 The Metamist Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package warehouse runs parameterized queries against BigQuery and tracks their estimated cost.
package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"
)

// DefaultPricePerTiB is the on-demand analysis price in USD.
const DefaultPricePerTiB = 6.25

const bytesPerTiB = 1 << 40

var tracer = otel.Tracer("metamist.warehouse")

// RowIterator is satisfied by *bigquery.RowIterator.
type RowIterator interface {
	Next(dst interface{}) error
}

// Runner executes queries for one logical operation. Queries on a Runner run in sequence.
type Runner interface {
	Run(ctx context.Context, query string, params []bigquery.QueryParameter) (RowIterator, error)
	// Cost is the cumulative estimated cost of the queries run so far.
	Cost() float64
	ID() string
}

// Connector hands out independent Runners.
type Connector interface {
	Connect() Runner
}

type Options struct {
	ProjectID      string
	Location       string
	PricePerTiB    float64
	DryRun         bool
	MaxBytesBilled int64
}

// Client is a Connector backed by a BigQuery client.
type Client struct {
	bq   *bigquery.Client
	opts Options
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	bqClient, err := bigquery.NewClient(ctx, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if opts.Location != "" {
		bqClient.Location = opts.Location
	}
	if opts.PricePerTiB <= 0 {
		opts.PricePerTiB = DefaultPricePerTiB
	}
	return &Client{bq: bqClient, opts: opts}, nil
}

// Close closes the BigQuery client
func (c *Client) Close() error {
	return c.bq.Close()
}

func (c *Client) Connect() Runner {
	return &Connection{
		id:     uuid.NewString(),
		client: c.bq,
		opts:   c.opts,
	}
}

// Connection is a Runner. Its cost counter is unsynchronized: a Connection belongs to
// one operation and its queries run one after another.
type Connection struct {
	id     string
	client *bigquery.Client
	opts   Options
	cost   float64
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Cost() float64 {
	return c.cost
}

func (c *Connection) Run(ctx context.Context, query string, params []bigquery.QueryParameter) (RowIterator, error) {
	ctx, span := tracer.Start(ctx, "Running warehouse query")
	defer span.End()
	span.SetAttributes(attribute.String("connection.id", c.id))

	q := c.client.Query(query)
	q.Parameters = params
	if c.opts.MaxBytesBilled > 0 {
		q.MaxBytesBilled = c.opts.MaxBytesBilled
	}

	if c.opts.DryRun {
		estimate, err := c.estimate(ctx, q)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		c.cost += estimate
		span.SetAttributes(attribute.Float64("query.estimated_cost", estimate))
	}

	it, err := q.Read(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to execute BigQuery query: %w", err)
	}
	return it, nil
}

func (c *Connection) estimate(ctx context.Context, q *bigquery.Query) (float64, error) {
	q.DryRun = true
	defer func() { q.DryRun = false }()

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate BigQuery query: %w", err)
	}
	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return 0, nil
	}

	processed := status.Statistics.TotalBytesProcessed
	estimate := float64(processed) / bytesPerTiB * c.opts.PricePerTiB
	logrus.WithFields(logrus.Fields{
		"connection":      c.id,
		"bytes_processed": processed,
		"estimated_cost":  estimate,
		"cumulative_cost": c.cost + estimate,
	}).Debug("estimated warehouse query cost")
	return estimate, nil
}

// ReadRows drains it into generic rows.
func ReadRows(it RowIterator) ([]map[string]bigquery.Value, error) {
	var rows []map[string]bigquery.Value
	for {
		row := make(map[string]bigquery.Value)
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read BigQuery row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
