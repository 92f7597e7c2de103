package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
)

func (s *Server) ListRules(c *gin.Context) {
	resp, err := s.flagSvc.ListRules(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("envId")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createRuleRequest struct {
	Priority  int             `json:"priority"`
	Clauses   json.RawMessage `json:"clauses"`
	Variation json.RawMessage `json:"variation"`
	Rollout   *int            `json:"rollout"`
}

func (s *Server) CreateRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.CreateRule(c.Request.Context(), flagdomain.CreateRuleRequest{
		FlagID:        strings.TrimSpace(c.Param("id")),
		EnvironmentID: strings.TrimSpace(c.Param("envId")),
		Priority:      req.Priority,
		Clauses:       req.Clauses,
		Variation:     req.Variation,
		Rollout:       req.Rollout,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "rule.created", "rule", resp.ID, map[string]any{
		"flag_id":        strings.TrimSpace(c.Param("id")),
		"environment_id": strings.TrimSpace(c.Param("envId")),
	})
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateRuleRequest struct {
	Priority  *int             `json:"priority"`
	Clauses   *json.RawMessage `json:"clauses"`
	Variation *json.RawMessage `json:"variation"`
	Rollout   *int             `json:"rollout"`
}

func (s *Server) UpdateRule(c *gin.Context) {
	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.UpdateRule(c.Request.Context(), flagdomain.UpdateRuleRequest{
		FlagID:        strings.TrimSpace(c.Param("id")),
		EnvironmentID: strings.TrimSpace(c.Param("envId")),
		RuleID:        strings.TrimSpace(c.Param("ruleId")),
		Priority:      req.Priority,
		Clauses:       req.Clauses,
		Variation:     req.Variation,
		Rollout:       req.Rollout,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "rule.updated", "rule", resp.ID, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRule(c *gin.Context) {
	ruleID := strings.TrimSpace(c.Param("ruleId"))
	err := s.flagSvc.DeleteRule(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("envId")),
		ruleID,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "rule.deleted", "rule", ruleID, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
