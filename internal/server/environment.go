package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
)

type createEnvironmentRequest struct {
	ProjectID string `json:"project_id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
}

func (s *Server) CreateEnvironment(c *gin.Context) {
	var req createEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.environmentSvc.Create(c.Request.Context(), environmentdomain.CreateRequest{
		ProjectID: strings.TrimSpace(req.ProjectID),
		Key:       strings.TrimSpace(req.Key),
		Name:      strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "environment.created", "environment", resp.ID, map[string]any{"key": resp.Key})
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEnvironments(c *gin.Context) {
	projectID := strings.TrimSpace(c.Query("project_id"))
	resp, err := s.environmentSvc.List(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEnvironmentByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.environmentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RotateEnvironmentKeys(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.environmentSvc.RotateKeys(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "environment.keys_rotated", "environment", resp.ID, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteEnvironment(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.environmentSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "environment.deleted", "environment", id, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
