package billing

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// stringValue renders a warehouse cell as text. NULL becomes "".
func stringValue(v bigquery.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.DateOnly)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// floatValue reads a numeric warehouse cell. ok is false for NULL.
func floatValue(v bigquery.Value) (f float64, ok bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case *big.Rat:
		f, _ = t.Float64()
		return f, true
	default:
		return 0, false
	}
}

// plainValue converts a cell into a JSON friendly value.
func plainValue(v bigquery.Value) interface{} {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t
	case *big.Rat:
		f, _ := t.Float64()
		return f
	case time.Time:
		return t.UTC().Format(time.DateTime)
	case []bigquery.Value:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	default:
		return stringValue(t)
	}
}
