package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"finsight/pkg/errors"
)

func TestCancelToken(t *testing.T) {
	tok := NewCancelToken()
	assert.False(t, tok.Cancelled())
	assert.NoError(t, tok.Check())

	tok.Cancel()
	assert.True(t, tok.Cancelled())
	assert.ErrorIs(t, tok.Check(), errors.ErrCancelled)

	var nilTok *CancelToken
	assert.NoError(t, nilTok.Check())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
