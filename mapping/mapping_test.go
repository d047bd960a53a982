package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/htnql-engine/htnql/mapping"
)

func TestIsSupportedDialect(t *testing.T) {
	assert.True(t, mapping.IsSupportedDialect("postgres"))
	assert.True(t, mapping.IsSupportedDialect("mysql"))
	assert.False(t, mapping.IsSupportedDialect("sqlite"))
}

func TestOperator_KnownAndUnknown(t *testing.T) {
	spelling, ok := mapping.Operator("postgres", "IN")
	assert.True(t, ok)
	assert.Equal(t, "IN", spelling)

	_, ok = mapping.Operator("postgres", "~")
	assert.False(t, ok)

	_, ok = mapping.Operator("oracle", "=")
	assert.False(t, ok)
}

func TestOperator_BothDialectsCoverAllowedOps(t *testing.T) {
	ops := []string{"=", "!=", "<", ">", "<=", ">=", "IN", "LIKE"}
	for _, dialect := range mapping.SupportedDialects {
		for _, op := range ops {
			_, ok := mapping.Operator(dialect, op)
			assert.True(t, ok, "dialect %s missing operator %s", dialect, op)
		}
	}
}
