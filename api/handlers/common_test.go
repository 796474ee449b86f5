package handlers

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/monitorflow/internal/ctxkeys"
	"github.com/BaSui01/monitorflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// envelope 解码统一响应，data 延迟解析
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *ErrorInfo      `json:"error"`
	RequestID string          `json:"request_id"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"k":"v"}`, w.Body.String())
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	r = r.WithContext(ctxkeys.WithRequestID(r.Context(), "req-42"))
	w := httptest.NewRecorder()

	WriteSuccess(w, r, map[string]int{"n": 1})

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "req-42", env.RequestID)
	assert.JSONEq(t, `{"n":1}`, string(env.Data))
	assert.Nil(t, env.Error)
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/cycles", nil)
	w := httptest.NewRecorder()

	err := types.NewError(types.ErrUpstream, "store unavailable").WithRetryable(true)
	WriteError(w, r, err, zap.NewNop())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)
	assert.Equal(t, "store unavailable", env.Error.Message)
	assert.True(t, env.Error.Retryable)
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidInput, http.StatusBadRequest},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrTimeout, http.StatusGatewayTimeout},
		{types.ErrUpstream, http.StatusBadGateway},
		{types.ErrSourceFetch, http.StatusBadGateway},
		{types.ErrCircuitOpen, http.StatusServiceUnavailable},
		{types.ErrFatal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForCode(tt.code))
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	assert.Equal(t, http.StatusOK, rw.StatusCode)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError) // 第二次无效
	n, err := rw.Write([]byte("gone"))
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusNotFound, rw.StatusCode)
	assert.Equal(t, int64(4), rw.BytesWritten)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Same(t, rw, NewResponseWriter(rw), "wrapping twice returns the same writer")
	assert.Equal(t, http.ResponseWriter(rec), rw.Unwrap())
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	_, _ = rw.Write([]byte("x"))
	assert.True(t, rw.Written)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestResponseWriter_Hijack(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	_, _, err := rw.Hijack()
	require.Error(t, err, "recorder does not support hijacking")

	hr := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = NewResponseWriter(hr)
	_, _, err = rw.Hijack()
	require.NoError(t, err)
	assert.True(t, hr.hijacked)
	assert.Equal(t, http.StatusSwitchingProtocols, rw.StatusCode)
}
