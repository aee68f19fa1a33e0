package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(log))
	r.Use(RequestLogger(log))

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/ingest/run", h.RunIngestion)

	leads := r.Group("/leads")
	{
		leads.GET("", h.ListLeads)
		leads.POST("/:id/status", h.UpdateLeadStatus)
	}

	return r
}
