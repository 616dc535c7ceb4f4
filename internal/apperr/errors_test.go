package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("leave request %d not found", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := fmt.Errorf("loading: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestInsufficientBalanceCarriesRemaining(t *testing.T) {
	err := InsufficientBalance(12.5)
	assert.True(t, errors.Is(err, ErrFailedPrecondition))
	assert.Equal(t, CodeInsufficient, CodeOf(err))

	remaining, ok := RemainingHours(err)
	assert.True(t, ok)
	assert.Equal(t, 12.5, remaining)
	assert.Contains(t, err.Error(), "12.50")
}

func TestKindOfUntypedIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	_, ok := RemainingHours(errors.New("boom"))
	assert.False(t, ok)
}
