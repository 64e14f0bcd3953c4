package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

func TestOrder_SucceedsAfterRetry(t *testing.T) {
	o := NewOrder(&domain.ExecutionOrder{EventID: "e"}, 3)
	assert.Equal(t, domain.OrderPending, o.State())

	require.NoError(t, o.BeginAttempt())
	retry, err := o.Fail(errors.New("timeout"), Transient)
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, domain.OrderRetrying, o.State())

	require.NoError(t, o.BeginAttempt())
	require.NoError(t, o.Succeed("sig"))
	assert.Equal(t, domain.OrderSucceeded, o.State())
	assert.Equal(t, "sig", o.Signature())
	assert.Equal(t, 2, o.Attempts())
	assert.NoError(t, o.LastError())
}

func TestOrder_TerminalFailureStops(t *testing.T) {
	o := NewOrder(&domain.ExecutionOrder{}, 3)
	require.NoError(t, o.BeginAttempt())

	retry, err := o.Fail(errors.New("insufficient funds"), Terminal)
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, domain.OrderFailedTerminal, o.State())

	assert.ErrorIs(t, o.BeginAttempt(), ErrInvalidTransition)
	assert.ErrorIs(t, o.Succeed("late"), ErrInvalidTransition)
	_, err = o.Fail(errors.New("again"), Transient)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrder_BudgetExhausted(t *testing.T) {
	o := NewOrder(&domain.ExecutionOrder{}, 2)

	for i := 0; i < 2; i++ {
		require.NoError(t, o.BeginAttempt())
		_, err := o.Fail(errors.New("node is behind"), Transient)
		require.NoError(t, err)
	}

	assert.Equal(t, domain.OrderFailedTerminal, o.State())
	assert.Equal(t, 2, o.Attempts())
	assert.EqualError(t, o.LastError(), "node is behind")
}

func TestOrder_MinimumBudget(t *testing.T) {
	o := NewOrder(&domain.ExecutionOrder{}, 0)
	require.NoError(t, o.BeginAttempt())
	assert.ErrorIs(t, o.BeginAttempt(), ErrInvalidTransition)
}
