package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler 报告服务存活状态以及启动时 schema 上下文的来源。
type HealthHandler struct {
	schemaSource string
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(schemaSource string) *HealthHandler {
	return &HealthHandler{schemaSource: schemaSource}
}

// Health 处理 GET /health。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"status": "ok", "schema_source": h.schemaSource},
	})
}
