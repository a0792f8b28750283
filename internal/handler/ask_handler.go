// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"

	"sql-smart-go/internal/middleware"
	"sql-smart-go/internal/model"
	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/llm"
	"sql-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AskHandler 负责处理自然语言问答请求。
type AskHandler struct {
	agent service.AgentService
}

// NewAskHandler 创建一个新的 AskHandler。
func NewAskHandler(agent service.AgentService) *AskHandler {
	return &AskHandler{agent: agent}
}

// AskRequest 定义了问答 API 的请求体结构。
type AskRequest struct {
	Question string `json:"question"`
}

// Ask 处理 POST /api/ask。SQL 执行失败时仍返回 200，错误信息在 data.error 中。
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Ask: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	answer, err := h.agent.Ask(c.Request.Context(), req.Question, requestUser(c))
	if err != nil {
		status, message := askErrorStatus(err)
		log.Errorf("Ask: 处理问题失败 (status %d): %v", status, err)
		c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": answer})
}

// askErrorStatus 把 agent 错误映射为 HTTP 状态码与提示信息。
func askErrorStatus(err error) (int, string) {
	var perr *llm.ProviderError
	switch {
	case errors.Is(err, service.ErrEmptyQuestion):
		return http.StatusBadRequest, "问题不能为空"
	case errors.As(err, &perr):
		return http.StatusBadGateway, "AI服务暂时不可用，请稍后重试"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "请求超时"
	default:
		return http.StatusInternalServerError, "处理问题失败"
	}
}

// requestUser 返回 UserResolver 解析的用户，路由未挂载解析器时退回默认用户。
func requestUser(c *gin.Context) *model.User {
	if user := middleware.CurrentUser(c); user != nil {
		return user
	}
	return model.DefaultUser()
}
