package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sql-smart-go/internal/service"
	"sql-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理 WebSocket 问答连接。
type ChatHandler struct {
	agent service.AgentService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(agent service.AgentService) *ChatHandler {
	return &ChatHandler{agent: agent}
}

// Handle 处理一个传入的 WebSocket 连接。每条文本消息是一个问题，
// 可以是 {"question": "..."} 或纯文本；每个问题依次回发一个 answer（或 error）帧和一个 completion 帧。
func (h *ChatHandler) Handle(c *gin.Context) {
	user := requestUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.ID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		question := parseQuestion(message)
		answer, err := h.agent.Ask(c.Request.Context(), question, user)
		if err != nil {
			status, msg := askErrorStatus(err)
			log.Errorf("处理 WebSocket 问题失败 (status %d): %v", status, err)
			if werr := conn.WriteJSON(gin.H{"type": "error", "code": status, "error": msg}); werr != nil {
				break
			}
		} else if werr := conn.WriteJSON(gin.H{"type": "answer", "data": answer}); werr != nil {
			break
		}

		if err := conn.WriteJSON(completionFrame()); err != nil {
			log.Warnf("发送 completion 通知失败: %v", err)
			break
		}
	}
}

// parseQuestion 优先按 JSON 解析 question 字段，否则整条消息视为问题。
func parseQuestion(message []byte) string {
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			return payload.Question
		}
	}
	return trimmed
}

func completionFrame() map[string]interface{} {
	now := time.Now()
	return map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
}
