package filter

import (
	"testing"

	"github.com/populationgenomics/metamist-sub002/internal/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	arr, err := ArrayOf([]Value{String("hail"), String("seqr")})
	require.NoError(t, err)
	bindings := []Binding{
		{Name: "topic_in", Value: arr, Type: TypeArray, ElemType: TypeString},
		{Name: "day_eq", Value: String("2024-03-01"), Type: TypeString},
	}
	query := "topic IN (:topic_in) AND day = :day_eq"

	t.Run("postgres", func(t *testing.T) {
		text, args, err := Rebind(Postgres, query, bindings)
		require.NoError(t, err)
		assert.Equal(t, "topic IN ($1, $2) AND day = $3", text)
		assert.Equal(t, []interface{}{"hail", "seqr", "2024-03-01"}, args)
	})

	t.Run("mysql", func(t *testing.T) {
		text, args, err := Rebind(MySQL, query, bindings)
		require.NoError(t, err)
		assert.Equal(t, "topic IN (?, ?) AND day = ?", text)
		assert.Len(t, args, 3)
	})

	t.Run("skips quoted text and casts", func(t *testing.T) {
		text, args, err := Rebind(Postgres, "labels->>'a:b' = :day_eq AND day::text <> ':topic_in'", bindings)
		require.NoError(t, err)
		assert.Equal(t, "labels->>'a:b' = $1 AND day::text <> ':topic_in'", text)
		assert.Equal(t, []interface{}{"2024-03-01"}, args)
	})

	t.Run("unknown placeholder", func(t *testing.T) {
		_, _, err := Rebind(Postgres, "x = :missing", bindings)
		assert.True(t, apierror.IsCode(err, apierror.ErrInternalServer))
	})
}
