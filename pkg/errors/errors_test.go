package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeInvalidSMILES, "unbalanced ring closure")
	assert.Equal(t, "[CHEM_001] unbalanced ring closure", err.Error())

	withDetail := err.WithDetail("smiles=c1ccc")
	assert.Equal(t, "[CHEM_001] unbalanced ring closure: smiles=c1ccc", withDetail.Error())
	// WithDetail must not mutate the receiver.
	assert.Empty(t, err.Detail)
}

func TestWrapPreservesChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, CodeDatabaseError, "failed to load library")

	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, CodeDatabaseError, GetCode(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	var err error = Wrap(nil, CodeInternal, "ignored")
	// Wrap returns a typed nil pointer; callers compare via the nil check on
	// the concrete return value, which this asserts.
	assert.Nil(t, err.(*AppError))
}

func TestWrapUnknownCodePreservesOriginal(t *testing.T) {
	inner := New(CodeInsufficientSample, "sample too small")
	outer := Wrap(inner, CodeUnknown, "build failed")
	assert.Equal(t, CodeInsufficientSample, outer.Code)
}

func TestIsCode(t *testing.T) {
	inner := New(CodeVectorDimMismatch, "query dim 12, library dim 60")
	wrapped := fmt.Errorf("scoring compound: %w", inner)

	assert.True(t, IsCode(wrapped, CodeVectorDimMismatch))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeNotFound, GetCode(NotFound("no such library")))
}
