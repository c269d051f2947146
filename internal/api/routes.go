// Package api exposes the send pipeline over a small REST surface:
// one endpoint to submit PDFs for upload, one to inspect the journal.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Algernon72/PDF2PACS/internal/storage"
)

// RegisterRoutes sets up the API routes.
func RegisterRoutes(router *gin.Engine, sender Sender, journal storage.SendJournal) {
	handler := NewAPIHandler(sender, journal)

	router.GET("/healthz", handler.HealthCheckHandler)

	v1 := router.Group("/api/v1")
	{
		uploads := v1.Group("/uploads")
		{
			uploads.POST("", handler.UploadHandler)
			uploads.GET("", handler.ListUploadsHandler)
		}
	}
}
