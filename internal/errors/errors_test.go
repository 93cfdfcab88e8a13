package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := ConfigInvalid("permutations must be positive")
	wrapped := Wrap(base, "failed to build validator")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.True(t, stderrors.Is(wrapped, base))
	assert.Equal(t, "failed to build validator: permutations must be positive", wrapped.Error())
}

func TestWrapPlainError(t *testing.T) {
	err := Wrapf(stderrors.New("disk full"), "write %s", "out.xlsx")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestHasCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("bad row"))
	assert.True(t, HasCode(err, CodeInvalidInput))
	assert.False(t, HasCode(stderrors.New("x"), CodeInvalidInput))
	assert.Equal(t, "UNKNOWN", GetCode(nil))
}
