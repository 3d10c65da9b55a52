package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/docflow/internal/service/document"
	"github.com/feichai0017/docflow/internal/store"
	"github.com/feichai0017/docflow/pkg/logger"
)

type DocumentHandler struct {
	service document.DocumentService
	logger  logger.Logger
}

func NewDocumentHandler(service document.DocumentService, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log,
	}
}

// List 查询全部文档
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(docs),
		"documents": docs,
	})
}

// Get 查询单个文档状态
func (h *DocumentHandler) Get(c *gin.Context) {
	docID := c.Param("docId")

	doc, err := h.service.Get(c.Request.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Document not found", err)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Override 人工修正分类或路由
func (h *DocumentHandler) Override(c *gin.Context) {
	docID := c.Param("docId")

	var req document.Override
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid override payload", err)
		return
	}

	doc, err := h.service.Override(c.Request.Context(), docID, req)
	if errors.Is(err, store.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Document not found", err)
		return
	}
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to override document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
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
