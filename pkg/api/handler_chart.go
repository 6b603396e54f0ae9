package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/adaa/pkg/blob"
)

// chartHandler handles GET /api/v1/charts/:task_id/:chart_id and returns
// the renderable chart payload.
func (s *Server) chartHandler(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("task_id")

	if _, err := s.jobService.GetOwnedJob(ctx, taskID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	data, err := s.blobs.Get(ctx, blob.ChartKey(taskID, c.Param("chart_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "application/json", data)
}
