package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"partygame/logger"
	"partygame/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: blank", services.ErrInvalidInput), http.StatusBadRequest},
		{services.ErrGameNotFound, http.StatusNotFound},
		{services.ErrPlayerNotFound, http.StatusNotFound},
		{services.ErrQuestionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: h1", services.ErrPlayerExists), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestRespondError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: password authentication failed"))
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestOriginChecker(t *testing.T) {
	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws/GAME01/p1", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker([]string{"*"})
	assert.True(t, open(withOrigin("https://anything.example")))

	listed := originChecker([]string{"https://party.example"})
	assert.True(t, listed(withOrigin("https://party.example")))
	assert.True(t, listed(withOrigin("")))
	assert.False(t, listed(withOrigin("https://evil.example")))
}

func TestParseQuestionID(t *testing.T) {
	id, err := parseQuestionID("42")
	assert.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"", "abc", "-1", "9223372036854775808", "18446744073709551615"} {
		_, err := parseQuestionID(raw)
		assert.Error(t, err, raw)
	}
}
