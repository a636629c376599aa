package filter

import "strings"

var reservedParams = map[string]bool{
	"limit":         true,
	"offset":        true,
	"order_by":      true,
	"group_by":      true,
	"fields":        true,
	"field":         true,
	"start_date":    true,
	"end_date":      true,
	"source":        true,
	"time_column":   true,
	"time_periods":  true,
	"filters_op":    true,
	"invoice_month": true,
}

func isReservedParam(param string) bool {
	return reservedParams[strings.ToLower(param)]
}
