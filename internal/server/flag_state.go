package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
)

func (s *Server) ListFlagStates(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.flagSvc.ListStates(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateFlagStateRequest struct {
	Enabled          *bool            `json:"enabled"`
	DefaultRollout   *int             `json:"default_rollout"`
	DefaultVariation *json.RawMessage `json:"default_variation"`
	OffVariation     *json.RawMessage `json:"off_variation"`
}

func (s *Server) UpdateFlagState(c *gin.Context) {
	var req updateFlagStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.UpdateState(c.Request.Context(), flagdomain.UpdateStateRequest{
		FlagID:           strings.TrimSpace(c.Param("id")),
		EnvironmentID:    strings.TrimSpace(c.Param("envId")),
		Enabled:          req.Enabled,
		DefaultRollout:   req.DefaultRollout,
		DefaultVariation: req.DefaultVariation,
		OffVariation:     req.OffVariation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "flag_state.updated", "flag_state", resp.ID, map[string]any{
		"flag_id":        resp.FlagID,
		"environment_id": resp.EnvironmentID,
	})
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type toggleFlagStateRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) ToggleFlagState(c *gin.Context) {
	var req toggleFlagStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.ToggleState(c.Request.Context(), flagdomain.ToggleStateRequest{
		FlagID:        strings.TrimSpace(c.Param("id")),
		EnvironmentID: strings.TrimSpace(c.Param("envId")),
		Enabled:       req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "flag_state.toggled", "flag_state", resp.ID, map[string]any{
		"flag_id":        resp.FlagID,
		"environment_id": resp.EnvironmentID,
		"enabled":        resp.Enabled,
	})
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
