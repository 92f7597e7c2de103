package server

import (
	"net/http"

	"github.com/beaconhq/beacon/internal/evaluation"
	"github.com/gin-gonic/gin"
)

func (s *Server) Evaluate(c *gin.Context) {
	var req evaluation.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.evaluationSvc.Evaluate(c.Request.Context(), sdkKeyFromRequest(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness reports whether flag configuration has been loaded at
// least once. Load balancers keep cold instances out of rotation off
// this endpoint.
func (s *Server) Readiness(c *gin.Context) {
	health := s.snapshotStore.Health()
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}
