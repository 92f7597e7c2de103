package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
)

type createFlagRequest struct {
	ProjectID        string          `json:"project_id"`
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Description      *string         `json:"description"`
	Tags             []string        `json:"tags"`
	DefaultVariation json.RawMessage `json:"default_variation"`
	OffVariation     json.RawMessage `json:"off_variation"`
}

func (s *Server) CreateFlag(c *gin.Context) {
	var req createFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.Create(c.Request.Context(), flagdomain.CreateRequest{
		ProjectID:        strings.TrimSpace(req.ProjectID),
		Key:              strings.TrimSpace(req.Key),
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Tags:             req.Tags,
		DefaultVariation: req.DefaultVariation,
		OffVariation:     req.OffVariation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "flag.created", "flag", resp.ID, map[string]any{"key": resp.Key})
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFlags(c *gin.Context) {
	var query struct {
		ProjectID string `form:"project_id"`
		Tag       string `form:"tag"`
		Archived  string `form:"archived"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	archived, err := parseOptionalBool(query.Archived)
	if err != nil {
		AbortWithError(c, newValidationError("archived", "invalid_archived", "invalid archived"))
		return
	}

	resp, err := s.flagSvc.List(c.Request.Context(), flagdomain.ListRequest{
		ProjectID: strings.TrimSpace(query.ProjectID),
		Tag:       strings.TrimSpace(query.Tag),
		Archived:  archived,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFlagByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.flagSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateFlagRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

func (s *Server) UpdateFlag(c *gin.Context) {
	var req updateFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.flagSvc.Update(c.Request.Context(), flagdomain.UpdateRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "flag.updated", "flag", resp.ID, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveFlag(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.flagSvc.Archive(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, "flag.archived", "flag", resp.ID, nil)
	s.snapshotStore.Notify()

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
