package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/docflow/api/handlers"
	"github.com/feichai0017/docflow/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	ingest := v1.Group("/ingest")
	{
		ingest.POST("/upload", h.Ingestion.Upload)
		ingest.POST("/batch", h.Ingestion.UploadBatch)
		ingest.POST("/email", h.Ingestion.EmailHook)
	}

	docs := v1.Group("/documents")
	{
		docs.GET("", h.Documents.List)
		docs.GET("/:docId", h.Documents.Get)
		docs.PATCH("/:docId/override", h.Documents.Override)
	}

	ws := r.Group("/ws")
	{
		ws.GET("/documents", h.Realtime.Documents)
		ws.GET("/mailbox", h.Realtime.Mailbox)
	}
}
