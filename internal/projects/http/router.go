package http

import "github.com/gin-gonic/gin"

// Register mounts the project routes on an already-authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.DELETE("/:id", h.delete)
}
