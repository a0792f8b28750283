package service

import (
	"context"

	"sql-smart-go/internal/model"
	"sql-smart-go/internal/repository"
)

// ConversationService 定义了对话业务逻辑的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, userID string) ([]model.ChatMessage, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。repo 为 nil 时历史始终为空。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取用户最近的消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	if s.repo == nil {
		return []model.ChatMessage{}, nil
	}
	return s.repo.GetConversationHistory(ctx, userID)
}
