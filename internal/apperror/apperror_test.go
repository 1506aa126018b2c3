package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("reserve: %w", NotFound("no user with that id"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, http.StatusNotFound, Status(err))
	assert.Equal(t, "no user with that id", Message(err))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, Status(Forbidden("full")))
	assert.Equal(t, http.StatusBadRequest, Status(BadRequest("bad id")))
	assert.Equal(t, http.StatusInternalServerError, Status(Internal("boom", nil)))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("plain")))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Internal("user service unavailable", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "user service unavailable", Message(err))
	assert.Equal(t, "internal server error", Message(cause))
}
