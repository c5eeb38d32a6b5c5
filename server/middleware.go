package server

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// installRootGinMiddlewares installs the middlewares every route, even
// ones registered later by callers embedding this router, should carry:
// a request ID on every response and context propagation into handlers
// spawned from background goroutines.
func installRootGinMiddlewares(router *gin.Engine) {
	router.ContextWithFallback = true
	router.Use(requestid.New())
}

// installCommonGinMiddlewares installs structured request logging and
// panic recovery.
func installCommonGinMiddlewares(router *gin.Engine, logger *zap.Logger) {
	router.Use(ginzap.Ginzap(logger, "", true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
}
