package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2AndMonetary(t *testing.T) {
	require.Equal(t, 4.67, Round2(4.666666))
	require.Equal(t, 56.0, Monetary(12, 70.0/15.0))
	require.Equal(t, 0.3, Sum(0.1, 0.2))
}

func TestWithinTolerance(t *testing.T) {
	require.True(t, WithinTolerance(150, 150.009))
	require.False(t, WithinTolerance(150, 150.01))
	require.False(t, WithinTolerance(100, 99))
}

func TestExceeds(t *testing.T) {
	require.False(t, Exceeds(150, 150))
	require.False(t, Exceeds(150.001, 150))
	require.True(t, Exceeds(0.01, 0))
}

func TestValidateStructWrapsKind(t *testing.T) {
	type input struct {
		Name   string  `validate:"required"`
		Amount float64 `validate:"gt=0"`
	}
	err := ValidateStruct(input{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidation))
	require.Contains(t, err.Error(), "input.Name failed required")
	require.NoError(t, ValidateStruct(input{Name: "x", Amount: 1}))
}
