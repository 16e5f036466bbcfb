package apperr

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_OrNil(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.OrNil())

	v.Add("batch_number", "is required")
	v.Add("batch_number", "ignored second message")
	err := v.OrNil()
	require.Error(t, err)

	got, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "is required", got.Fields["batch_number"])
	assert.Equal(t, "validation failed: batch_number: is required", err.Error())
}

func TestValidationError_Merge(t *testing.T) {
	basics := &ValidationError{}
	basics.Add("name", "is required")

	v := &ValidationError{}
	v.Merge("basic.", basics)
	v.Merge("pricing.", nil)
	assert.Equal(t, map[string]string{"basic.name": "is required"}, v.Fields)
}

func TestPersistence_WrapsBoth(t *testing.T) {
	err := Persistence("insert restock", sql.ErrConnDone)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Nil(t, Persistence("noop", nil))
}

func TestNotFoundAndConflict(t *testing.T) {
	assert.ErrorIs(t, NotFound("drug %d", 7), ErrNotFound)
	assert.EqualError(t, NotFound("drug %d", 7), "drug 7: not found")
	assert.ErrorIs(t, Conflict("restock %s is %s", "abc", "approved"), ErrConflict)
}
