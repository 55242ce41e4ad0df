package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tailbeam/rpcengine/rpcconn"
)

// newDiagnosticsRouter builds the gin HTTP sidecar exposing /healthz and
// /metrics, grounded on the teacher's cmd/trace router setup (gin.New +
// gin.Recovery + otelgin.Middleware) — the one surface in this module where
// gin's request/response semantics, rather than the engine's own framing,
// are what's under test.
func newDiagnosticsRouter(conn *rpcconn.Connection, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pingserver"))

	router.GET("/healthz", func(c *gin.Context) { healthz(c, conn) })
	router.GET("/metrics", gin.WrapH(metricsHandler))

	return router
}

func healthz(c *gin.Context, conn *rpcconn.Connection) {
	ready := false
	select {
	case <-conn.Ready():
		ready = true
	default:
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"state": conn.State(),
		"ready": ready,
	})
}
