package irrecoverable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestException(t *testing.T) {
	cause := errors.New("corrupted value")
	err := NewExceptionf("could not decode entity: %w", cause)

	assert.True(t, IsException(err))
	assert.True(t, IsException(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsException(cause))
}
