package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// systemWarningsHandler handles GET /api/v1/system/warnings.
func (s *Server) systemWarningsHandler(c *gin.Context) {
	response := SystemWarningsResponse{
		Warnings: []SystemWarningItem{},
	}

	if s.warningService != nil {
		for _, w := range s.warningService.GetWarnings() {
			response.Warnings = append(response.Warnings, SystemWarningItem{
				ID:        w.ID,
				Category:  w.Category,
				Message:   w.Message,
				Details:   w.Details,
				Source:    w.Source,
				CreatedAt: w.CreatedAt.Format(time.RFC3339),
			})
		}
	}

	c.JSON(http.StatusOK, response)
}
