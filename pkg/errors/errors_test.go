package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Clone(ErrInvalidTransition, "contract is already cancelled"))
	assert.True(t, Is(err, ErrInvalidTransition))
	assert.False(t, Is(err, ErrConflict))
	assert.False(t, Is(nil, ErrConflict))
}

func TestCloneKeepsSentinelIntact(t *testing.T) {
	clone := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.Equal(t, http.StatusNotFound, clone.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(sql.ErrNoRows, ErrInternal.Code, ErrInternal.Status, "failed to load charge")
	assert.Equal(t, "failed to load charge: sql: no rows in result set", err.Error())
}
