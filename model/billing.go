package model

import "strings"

// BillingColumn is a column of the billing views that can be grouped or filtered on.
type BillingColumn string

const (
	ColumnDay          BillingColumn = "day"
	ColumnTopic        BillingColumn = "topic"
	ColumnGcpProject   BillingColumn = "gcp_project"
	ColumnCostCategory BillingColumn = "cost_category"
	ColumnSku          BillingColumn = "sku"
	ColumnInvoiceMonth BillingColumn = "invoice_month"
	ColumnArGuid       BillingColumn = "ar_guid"
	ColumnCurrency     BillingColumn = "currency"
	ColumnCost         BillingColumn = "cost"
	ColumnLabels       BillingColumn = "labels"

	// Columns only present on the extended view.
	ColumnDataset                 BillingColumn = "dataset"
	ColumnBatchID                 BillingColumn = "batch_id"
	ColumnSequencingType          BillingColumn = "sequencing_type"
	ColumnStage                   BillingColumn = "stage"
	ColumnSequencingGroup         BillingColumn = "sequencing_group"
	ColumnComputeCategory         BillingColumn = "compute_category"
	ColumnCromwellSubWorkflowName BillingColumn = "cromwell_sub_workflow_name"
	ColumnCromwellWorkflowID      BillingColumn = "cromwell_workflow_id"
	ColumnGoogPipelinesWorker     BillingColumn = "goog_pipelines_worker"
	ColumnWdlTaskName             BillingColumn = "wdl_task_name"
	ColumnNamespace               BillingColumn = "namespace"
)

var standardColumns = []BillingColumn{
	ColumnDay,
	ColumnTopic,
	ColumnGcpProject,
	ColumnCostCategory,
	ColumnSku,
	ColumnInvoiceMonth,
	ColumnArGuid,
	ColumnCurrency,
}

var extendedColumns = []BillingColumn{
	ColumnDataset,
	ColumnBatchID,
	ColumnSequencingType,
	ColumnStage,
	ColumnSequencingGroup,
	ColumnComputeCategory,
	ColumnCromwellSubWorkflowName,
	ColumnCromwellWorkflowID,
	ColumnGoogPipelinesWorker,
	ColumnWdlTaskName,
	ColumnNamespace,
}

var runningCostColumns = []BillingColumn{
	ColumnTopic,
	ColumnGcpProject,
	ColumnDataset,
	ColumnStage,
	ColumnComputeCategory,
	ColumnWdlTaskName,
	ColumnCromwellSubWorkflowName,
	ColumnNamespace,
}

// filterOptionColumns are the columns offered as filter choices.
var filterOptionColumns = []BillingColumn{
	ColumnTopic,
	ColumnGcpProject,
	ColumnCostCategory,
	ColumnSku,
	ColumnDataset,
	ColumnStage,
	ColumnSequencingType,
	ColumnComputeCategory,
	ColumnCromwellSubWorkflowName,
	ColumnWdlTaskName,
	ColumnNamespace,
}

func StandardColumns() []BillingColumn {
	return append([]BillingColumn(nil), standardColumns...)
}

func ExtendedColumns() []BillingColumn {
	return append([]BillingColumn(nil), extendedColumns...)
}

func RunningCostColumns() []BillingColumn {
	return append([]BillingColumn(nil), runningCostColumns...)
}

func FilterOptionColumns() []BillingColumn {
	return append([]BillingColumn(nil), filterOptionColumns...)
}

// IsExtended reports whether the column only exists on the extended view.
func (c BillingColumn) IsExtended() bool {
	for _, e := range extendedColumns {
		if e == c {
			return true
		}
	}
	return false
}

func (c BillingColumn) IsRunningCostColumn() bool {
	for _, e := range runningCostColumns {
		if e == c {
			return true
		}
	}
	return false
}

var acronyms = map[string]string{
	"gcp": "GCP",
	"wdl": "WDL",
	"id":  "ID",
	"ar":  "AR",
}

// Plural renders the column as a title-case plural, e.g. "Compute Categories".
func (c BillingColumn) Plural() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		title, acronym := acronyms[w]
		if !acronym && w != "" {
			title = strings.ToUpper(w[:1]) + w[1:]
		}
		if i == len(words)-1 {
			if acronym {
				title += "s"
			} else {
				title = pluralize(title)
			}
		}
		words[i] = title
	}
	return strings.Join(words, " ")
}

func pluralize(w string) string {
	switch {
	case strings.HasSuffix(w, "y") && len(w) > 1 && !strings.ContainsAny(w[len(w)-2:len(w)-1], "aeiou"):
		return w[:len(w)-1] + "ies"
	case strings.HasSuffix(w, "s"), strings.HasSuffix(w, "x"), strings.HasSuffix(w, "ch"), strings.HasSuffix(w, "sh"):
		return w + "es"
	default:
		return w + "s"
	}
}

// TotalLabel is the field value of the synthetic total record.
func (c BillingColumn) TotalLabel() string {
	return "All " + c.Plural()
}

// BillingSource selects the physical table a total cost query reads.
type BillingSource string

const (
	SourceAggregate  BillingSource = "aggregate"
	SourceExtended   BillingSource = "extended"
	SourceGcpBilling BillingSource = "gcp_billing"
	SourceRaw        BillingSource = "raw"
)

// CostGroup buckets cost categories for summaries.
type CostGroup string

const (
	CostGroupCompute CostGroup = "Compute"
	CostGroupStorage CostGroup = "Storage"
)

// StoragePrefix marks a cost category as storage when no explicit classification exists.
const StoragePrefix = "Cloud Storage"
