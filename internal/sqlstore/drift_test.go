package sqlstore

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestMissingColumn_PgError(t *testing.T) {
	err := &pgconn.PgError{
		Code:    "42703",
		Message: `column "wedding_flag" of relation "orders" does not exist`,
	}

	col, ok := MissingColumn(err)
	assert.True(t, ok)
	assert.Equal(t, "wedding_flag", col)
}

func TestMissingColumn_WrappedPgError(t *testing.T) {
	inner := &pgconn.PgError{
		Code:    "42703",
		Message: `column "ribbon_color" of relation "products" does not exist`,
	}
	err := eris.Wrap(inner, "sqlstore: upsert P1 into products")

	col, ok := MissingColumn(err)
	assert.True(t, ok)
	assert.Equal(t, "ribbon_color", col)
}

func TestMissingColumn_PostgRESTShape(t *testing.T) {
	err := eris.New(`Could not find the 'pickup_slot' column of 'orders' in the schema cache`)

	col, ok := MissingColumn(err)
	assert.True(t, ok)
	assert.Equal(t, "pickup_slot", col)
}

func TestMissingColumn_OtherPgError(t *testing.T) {
	err := &pgconn.PgError{
		Code:    "23502", // not-null violation is not drift
		Message: `null value in column "name" violates not-null constraint`,
	}

	_, ok := MissingColumn(err)
	assert.False(t, ok)
}

func TestMissingColumn_GenericError(t *testing.T) {
	_, ok := MissingColumn(eris.New("connection refused"))
	assert.False(t, ok)
}

func TestMissingColumn_Nil(t *testing.T) {
	_, ok := MissingColumn(nil)
	assert.False(t, ok)
}
