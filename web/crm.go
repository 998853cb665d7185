package web

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/sync"
)

func (s *Server) handleListPipelines(c echo.Context) error {
	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	pipelines, err := sess.CRM.ListPipelines(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "pipelines": pipelines})
}

func (s *Server) handleListStatuses(c echo.Context) error {
	pipelineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || pipelineID <= 0 {
		return apperr.Validation("invalid pipeline id")
	}

	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	statuses, err := sess.CRM.ListStages(c.Request().Context(), pipelineID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "statuses": statuses})
}

type generateLeadsRequest struct {
	PipelineID int64    `json:"pipeline_id"`
	StatusID   int64    `json:"status_id"`
	ContactIDs []string `json:"contact_ids"`
}

// handleGenerateLeads runs a sync job inside the request. The job is paced,
// so the response may take minutes for large contact lists.
func (s *Server) handleGenerateLeads(c echo.Context) error {
	var req generateLeadsRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.PipelineID <= 0 {
		return apperr.Validation("pipeline required")
	}

	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	job, err := sess.Orchestrator.RunSync(c.Request().Context(), sync.SyncRequest{
		PipelineID: req.PipelineID,
		StatusID:   req.StatusID,
		ContactIDs: req.ContactIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "results": job})
}

func (s *Server) handleConnectionStatus(c echo.Context) error {
	sess, err := s.liveSession(c)
	if err != nil {
		return err
	}
	account, err := sess.CRM.VerifyConnection(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "account": account})
}
