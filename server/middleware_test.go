package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRootMiddlewaresSetRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	installRootGinMiddlewares(router)
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCommonMiddlewaresRecoverFromPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	installRootGinMiddlewares(router)
	installCommonGinMiddlewares(router, zap.NewNop())
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
