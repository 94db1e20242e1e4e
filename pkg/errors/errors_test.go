package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("load: %w", Wrap(errors.New("eof"), ErrIncompatibleModel.Code, ErrIncompatibleModel.Status, "bad header"))

	assert.True(t, errors.Is(err, ErrIncompatibleModel))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "bad header: eof", errors.Unwrap(err).Error())
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	typed := FromError(ErrTrainingDisabled)
	assert.Same(t, ErrTrainingDisabled, typed)
}
