package clerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsAgainstKind(t *testing.T) {
	err := NotFoundf("agent %q not found", "jarvis")
	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, Conflict))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(StoreErr, "create cron job", cause)

	require.Error(t, err)
	assert.True(t, errors.Is(err, StoreErr))
	assert.ErrorIs(t, err, cause)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, StoreErr, e.Kind)
	assert.Equal(t, cause, e.Err)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(StoreErr, "no-op", nil))
}

func TestKindOfDefaultsToBackground(t *testing.T) {
	assert.Equal(t, Background, KindOf(errors.New("unstructured")))
	assert.Equal(t, Validation, KindOf(Validationf("delay out of range")))
}

func TestErrorMessageIncludesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CLIErr, "probe failed", cause)
	assert.Equal(t, fmt.Sprintf("%s: probe failed: boom", CLIErr), err.Error())
}

func TestSentinelKindSatisfiesError(t *testing.T) {
	var err error = Conflict
	assert.Equal(t, "conflict", err.Error())
}
