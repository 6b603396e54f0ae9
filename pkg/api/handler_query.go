package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/query"
	"github.com/codeready-toolchain/adaa/pkg/models"
	"github.com/codeready-toolchain/adaa/pkg/services"
)

// queryHandler handles POST /api/v1/analyses/:task_id/query.
// The analysis must be completed.
func (s *Server) queryHandler(c *gin.Context) {
	if s.queryAgent == nil {
		respondError(c, &httpError{Code: http.StatusServiceUnavailable, Message: "query agent not available"})
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &httpError{Code: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(c, query.ErrEmptyQuestion)
		return
	}

	ctx := c.Request.Context()
	job, err := s.jobService.GetOwnedJob(ctx, c.Param("task_id"), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if job.Status != models.JobCompleted {
		respondError(c, services.ErrJobNotCompleted)
		return
	}

	ans, err := s.queryAgent.Ask(ctx, query.Request{
		TaskID:   job.TaskID,
		Question: req.Question,
		Load: func(ctx context.Context) (*agent.AnalysisContext, error) {
			ds, res, err := s.loadAnalysis(ctx, job)
			if err != nil {
				return nil, err
			}
			return agent.FromResult(ds, res), nil
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.trackModelHealth(ans)
	c.JSON(http.StatusOK, ans)
}

// trackModelHealth raises a system warning while answers fall back to rules
// because the configured model fails, and clears it once the model answers.
func (s *Server) trackModelHealth(ans *models.QueryAnswer) {
	llm := s.cfg.Query.LLM
	if s.warningService == nil || !llm.Enabled() {
		return
	}
	switch {
	case ans.Source == models.SourceModel:
		s.warningService.Clear(services.WarningCategoryQueryModel, llm.Model)
	case ans.Note != "":
		s.warningService.AddWarning(services.WarningCategoryQueryModel,
			"Query model unavailable, answering from rules", ans.Note, llm.Model)
	}
}
