package syncerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("missing name")))
	assert.Equal(t, KindPermission, KindOf(PermissionDenied("resident only")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("pet %s", "p1")))
	assert.Equal(t, KindTransport, KindOf(errors.New("dial tcp: refused")))
	assert.Equal(t, KindTransport, KindOf(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transport(cause, "list debtors")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Contains(t, err.Error(), "list debtors")
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NotFound("meeting m9")
	outer := fmt.Errorf("refresh failed: %w", inner)

	assert.True(t, Is(outer, KindNotFound))
	assert.False(t, Is(outer, KindValidation))
}
