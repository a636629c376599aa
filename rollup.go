package billing

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wacul/ptr"

	"github.com/populationgenomics/metamist-sub002/model"
)

// costCounters are the running totals of one grouping value.
type costCounters struct {
	computeMonthly decimal.Decimal
	computeDaily   decimal.Decimal
	storageMonthly decimal.Decimal
	storageDaily   decimal.Decimal
}

func (c *costCounters) add(group model.CostGroup, monthly, daily decimal.Decimal) {
	if group == model.CostGroupStorage {
		c.storageMonthly = c.storageMonthly.Add(monthly)
		c.storageDaily = c.storageDaily.Add(daily)
		return
	}
	c.computeMonthly = c.computeMonthly.Add(monthly)
	c.computeDaily = c.computeDaily.Add(daily)
}

type categoryTotal struct {
	group   model.CostGroup
	monthly decimal.Decimal
	daily   decimal.Decimal
}

type rollupEntry struct {
	counters   costCounters
	categories []string
	details    map[string]*categoryTotal
}

func newRollupEntry() *rollupEntry {
	return &rollupEntry{details: make(map[string]*categoryTotal)}
}

func (e *rollupEntry) add(category string, group model.CostGroup, monthly, daily decimal.Decimal) {
	e.counters.add(group, monthly, daily)
	d, ok := e.details[category]
	if !ok {
		d = &categoryTotal{group: group}
		e.details[category] = d
		e.categories = append(e.categories, category)
	}
	d.monthly = d.monthly.Add(monthly)
	d.daily = d.daily.Add(daily)
}

// rollup accumulates cost rows per grouping value, keeping first-seen order. The
// synthetic total is kept apart from the grouping values so a value spelled like the
// total label still gets its own record.
type rollup struct {
	totalLabel string
	total      *rollupEntry
	keys       []string
	entries    map[string]*rollupEntry
	classes    map[string]model.CostGroup
}

func newRollup(totalLabel string, classes map[string]model.CostGroup) *rollup {
	return &rollup{
		totalLabel: totalLabel,
		total:      newRollupEntry(),
		entries:    make(map[string]*rollupEntry),
		classes:    classes,
	}
}

func (r *rollup) entry(key string) *rollupEntry {
	e, ok := r.entries[key]
	if !ok {
		e = newRollupEntry()
		r.entries[key] = e
		r.keys = append(r.keys, key)
	}
	return e
}

// costGroup classifies a category. Explicit classifications win over the name prefix.
func (r *rollup) costGroup(category string) model.CostGroup {
	if g, ok := r.classes[category]; ok {
		return g
	}
	if strings.HasPrefix(category, model.StoragePrefix) {
		return model.CostGroupStorage
	}
	return model.CostGroupCompute
}

func (r *rollup) add(row model.CostRow) {
	group := r.costGroup(row.CostCategory)
	monthly := decimal.NewFromFloat(row.MonthlyCost)
	daily := decimal.Zero
	if row.DailyCost != nil {
		daily = decimal.NewFromFloat(*row.DailyCost)
	}
	r.total.add(row.CostCategory, group, monthly, daily)
	r.entry(row.Field).add(row.CostCategory, group, monthly, daily)
}

// records emits the total followed by one record per key. withDaily controls whether
// daily figures are reported or left null.
func (r *rollup) records(withDaily bool) []model.BillingCostBudgetRecord {
	out := make([]model.BillingCostBudgetRecord, 0, len(r.keys)+1)
	out = append(out, r.total.record(r.totalLabel, withDaily))
	for _, key := range r.keys {
		out = append(out, r.entries[key].record(key, withDaily))
	}
	return out
}

func (e *rollupEntry) record(key string, withDaily bool) model.BillingCostBudgetRecord {
	c := e.counters

	rec := model.BillingCostBudgetRecord{
		Field:          key,
		ComputeMonthly: c.computeMonthly.InexactFloat64(),
		StorageMonthly: c.storageMonthly.InexactFloat64(),
		Details:        make([]model.CostDetail, 0, len(e.categories)),
	}
	rec.TotalMonthly = rec.ComputeMonthly + rec.StorageMonthly
	if withDaily {
		computeDaily := c.computeDaily.InexactFloat64()
		storageDaily := c.storageDaily.InexactFloat64()
		rec.ComputeDaily = ptr.Float64(computeDaily)
		rec.StorageDaily = ptr.Float64(storageDaily)
		rec.TotalDaily = ptr.Float64(computeDaily + storageDaily)
	}

	for _, category := range e.categories {
		d := e.details[category]
		detail := model.CostDetail{
			CostGroup:    d.group,
			CostCategory: category,
			MonthlyCost:  d.monthly.InexactFloat64(),
		}
		if withDaily {
			detail.DailyCost = ptr.Float64(d.daily.InexactFloat64())
		}
		rec.Details = append(rec.Details, detail)
	}
	return rec
}
