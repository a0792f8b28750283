package handler

import (
	"errors"
	"net/http"
	"strconv"

	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理管理员对 agent 记忆的查看与写入。
type AdminHandler struct {
	memoryService service.MemoryService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(memoryService service.MemoryService) *AdminHandler {
	return &AdminHandler{memoryService: memoryService}
}

// AddMemoryRequest 定义了写入记忆 API 的请求体结构。
type AddMemoryRequest struct {
	Text string `json:"text" binding:"required"`
}

// ListMemory 处理 GET /api/admin/memory?query=&limit=。
func (h *AdminHandler) ListMemory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 limit 参数", "data": nil})
		return
	}
	docs, err := h.memoryService.ListDocuments(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		log.Error("ListMemory: Failed to list memory documents", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取记忆列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// AddMemory 处理 POST /api/admin/memory。
func (h *AdminHandler) AddMemory(c *gin.Context) {
	var req AddMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("AddMemory: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	user := requestUser(c)
	err := h.memoryService.AddDocument(c.Request.Context(), req.Text, user)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrEmptyDocument):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "文档内容不能为空", "data": nil})
		return
	case errors.Is(err, memory.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足，需要管理员权限", "data": nil})
		return
	default:
		log.Error("AddMemory: Failed to add memory document", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "写入记忆失败", "data": nil})
		return
	}

	log.Infof("Admin user '%s' added a memory document", user.ID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}
