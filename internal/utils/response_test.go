package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorResponse_MapsGatewayTimeout(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	ErrorResponse(c, http.StatusGatewayTimeout, "Printer did not respond", errors.New("handshake timed out"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "GATEWAY_TIMEOUT", resp.Error.Code)
	assert.Equal(t, "handshake timed out", resp.Error.Details)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessResponse(c, http.StatusOK, "ok", gin.H{"count": 2})

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.RequestID)
}
