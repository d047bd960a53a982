package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnql-engine/htnql/dialect"
)

func TestGet_DefaultsToPostgres(t *testing.T) {
	d, err := dialect.Get("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestGet_RejectsUnsupportedDialect(t *testing.T) {
	_, err := dialect.Get("oracle")
	require.Error(t, err)
}

func TestQuoteIdent_PerDialect(t *testing.T) {
	pg, err := dialect.Get("postgres")
	require.NoError(t, err)
	assert.Equal(t, `"orders"`, pg.QuoteIdent("orders"))

	my, err := dialect.Get("mysql")
	require.NoError(t, err)
	assert.Equal(t, "`orders`", my.QuoteIdent("orders"))
}

func TestOperator_UnknownFails(t *testing.T) {
	pg, err := dialect.Get("postgres")
	require.NoError(t, err)
	_, err = pg.Operator("~")
	require.Error(t, err)
}

func TestOperator_KnownSucceeds(t *testing.T) {
	pg, err := dialect.Get("postgres")
	require.NoError(t, err)
	spelling, err := pg.Operator("=")
	require.NoError(t, err)
	assert.Equal(t, "=", spelling)
}

func TestValidateSyntax_Postgres(t *testing.T) {
	pg, err := dialect.Get("postgres")
	require.NoError(t, err)

	assert.NoError(t, pg.ValidateSyntax("SELECT 1"))
	assert.Error(t, pg.ValidateSyntax("SELEC FROM WHERE ;;"))
}

func TestValidateSyntax_Mysql(t *testing.T) {
	my, err := dialect.Get("mysql")
	require.NoError(t, err)

	assert.NoError(t, my.ValidateSyntax("SELECT 1"))
	assert.Error(t, my.ValidateSyntax("SELEC FROM WHERE ;;"))
}

func TestValidateFragmentSyntax_Postgres(t *testing.T) {
	pg, err := dialect.Get("postgres")
	require.NoError(t, err)

	assert.NoError(t, pg.ValidateFragmentSyntax("SELECT region, amount_cents FROM orders_view"))
	assert.Error(t, pg.ValidateFragmentSyntax("SELECT SELECT FROM FROM"))
}

func TestValidateFragmentSyntax_Mysql(t *testing.T) {
	my, err := dialect.Get("mysql")
	require.NoError(t, err)

	assert.NoError(t, my.ValidateFragmentSyntax("SELECT region, amount_cents FROM orders_view"))
	assert.Error(t, my.ValidateFragmentSyntax("SELECT SELECT FROM FROM"))
}
