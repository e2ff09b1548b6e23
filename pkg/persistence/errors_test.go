package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_WrapsSentinel(t *testing.T) {
	err := NewStoreError("ExecutionByID", "exec-12345678", ErrExecutionNotFound)

	assert.True(t, IsExecutionNotFound(err))
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	assert.Contains(t, err.Error(), "ExecutionByID")
	assert.Contains(t, err.Error(), "exec-12345678")
}

func TestStoreError_MessageInOutput(t *testing.T) {
	err := &StoreError{
		Op:          "Save",
		ExecutionID: "exec-12345678",
		Err:         errors.New("disk full"),
		Message:     "writing snapshot",
	}

	assert.Contains(t, err.Error(), "writing snapshot")
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsExecutionNotFound_UnrelatedError(t *testing.T) {
	assert.False(t, IsExecutionNotFound(errors.New("boom")))
}
