package httpx

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{400, types.ErrInvalidInput, false},
		{401, types.ErrInvalidInput, false},
		{404, types.ErrNotFound, false},
		{429, types.ErrUpstream, true},
		{500, types.ErrUpstream, true},
		{503, types.ErrUpstream, true},
	}
	for _, tt := range tests {
		err := MapStatus(tt.status, "msg", "clickup")
		assert.Equal(t, tt.code, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Contains(t, err.Error(), "clickup returned status")
	}
}

func TestReadErrorMessage(t *testing.T) {
	assert.Equal(t, "bad token", ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad token"}}`)))
	assert.Equal(t, "nope", ReadErrorMessage(strings.NewReader(`{"error":"nope"}`)))
	assert.Equal(t, "flat", ReadErrorMessage(strings.NewReader(`{"message":"flat"}`)))
	assert.Equal(t, "plain text", ReadErrorMessage(strings.NewReader("plain text")))
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := TransportError("jira", cause)
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
}

func TestDecodeJSON(t *testing.T) {
	var v map[string]any
	assert.NoError(t, DecodeJSON(strings.NewReader(`{"a":1}`), &v, "x"))
	err := DecodeJSON(strings.NewReader(`{`), &v, "x")
	assert.Equal(t, types.ErrUpstream, types.GetErrorCode(err))
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient(0)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport)

	assert.Equal(t, 5*time.Second, NewClient(5*time.Second).Timeout)
}
