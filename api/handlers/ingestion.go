package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/docflow/internal/events"
	"github.com/feichai0017/docflow/internal/models"
	"github.com/feichai0017/docflow/internal/service/document"
	"github.com/feichai0017/docflow/pkg/logger"
)

type IngestionHandler struct {
	service document.DocumentService
	logger  logger.Logger
}

// IngestResponse 定义入库响应结构
type IngestResponse struct {
	DocID     string `json:"docId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileType  string `json:"fileType"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewIngestionHandler(service document.DocumentService, log logger.Logger) *IngestionHandler {
	return &IngestionHandler{
		service: service,
		logger:  log,
	}
}

// Upload 上传单个文档
func (h *IngestionHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	source := c.DefaultPostForm("source", events.InputFileUpload)
	if source != events.InputFileUpload && source != events.InputFileShare {
		h.handleError(c, http.StatusBadRequest, "Unknown ingestion source", fmt.Errorf("source %q", source))
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), file, header, source)
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to ingest file", err)
		return
	}

	c.JSON(http.StatusAccepted, ingestResponse(doc, header.Filename))
}

// UploadBatch 批量上传文档
func (h *IngestionHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	source := c.DefaultPostForm("source", events.InputFileUpload)
	docs, err := h.service.UploadBatch(c.Request.Context(), files, source)
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to ingest files", err)
		return
	}

	responses := make([]IngestResponse, len(docs))
	for i, doc := range docs {
		responses[i] = ingestResponse(doc, doc.Name)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   fmt.Sprintf("Ingesting %d documents", len(docs)),
		"documents": responses,
	})
}

// EmailHook 接收邮箱回调
func (h *IngestionHandler) EmailHook(c *gin.Context) {
	var email document.EmailIngest
	if err := c.ShouldBindJSON(&email); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid email payload", err)
		return
	}

	docs, err := h.service.IngestEmail(c.Request.Context(), email)
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to ingest email", err)
		return
	}

	responses := make([]IngestResponse, len(docs))
	for i, doc := range docs {
		responses[i] = ingestResponse(doc, doc.Name)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   fmt.Sprintf("Ingesting %d attachments", len(docs)),
		"documents": responses,
	})
}

func ingestResponse(doc *models.Document, filename string) IngestResponse {
	return IngestResponse{
		DocID:     doc.ID,
		Status:    string(doc.Status),
		Filename:  filename,
		FileType:  filepath.Ext(filename),
		CreatedAt: doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleError 统一错误处理
func (h *IngestionHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
