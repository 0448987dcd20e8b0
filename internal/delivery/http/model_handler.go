package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

// ModelHandler handles model listing requests.
type ModelHandler struct{}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler() *ModelHandler {
	return &ModelHandler{}
}

// List handles GET /api/v1/models
func (h *ModelHandler) List(c *gin.Context) {
	models := []domain.ModelInfo{
		{Name: "tiny", Params: "39M", Multilang: true},
		{Name: "base", Params: "74M", Multilang: true},
		{Name: "small", Params: "244M", Multilang: true},
		{Name: "medium", Params: "769M", Multilang: true},
		{Name: "large", Params: "1550M", Multilang: true},
	}

	c.JSON(http.StatusOK, gin.H{
		"models": models,
	})
}
