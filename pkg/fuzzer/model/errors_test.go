package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportErrorRetryable(t *testing.T) {
	assert.True(t, NewTransportError(TransportRetryable, "reset", nil).Retryable())
	assert.True(t, NewTransportError(TransportTimeout, "deadline", nil).Retryable())
	assert.False(t, NewTransportError(TransportPolicyViolation, "blocked", nil).Retryable())
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("dial refused")
	err := NewTransportError(TransportConnect, "connect failed", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "dial refused")
}

func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("timeout", "must be positive")
	assert.Equal(t, "config error: timeout: must be positive", err.Error())
}
