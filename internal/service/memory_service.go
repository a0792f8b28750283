package service

import (
	"context"
	"errors"
	"strings"

	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/model"
)

// ErrEmptyDocument 表示写入的文档内容为空。
var ErrEmptyDocument = errors.New("document text is required")

const (
	defaultMemoryLimit = 20
	maxMemoryLimit     = 200
)

// MemoryService 提供对 agent 记忆的管理操作。
type MemoryService interface {
	AddDocument(ctx context.Context, text string, user *model.User) error
	ListDocuments(ctx context.Context, query string, limit int) ([]model.Document, error)
}

type memoryService struct {
	store memory.Store
}

// NewMemoryService 创建一个新的 MemoryService。
func NewMemoryService(store memory.Store) MemoryService {
	return &memoryService{store: store}
}

// AddDocument 追加一条文档，权限由存储层校验。
func (s *memoryService) AddDocument(ctx context.Context, text string, user *model.User) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyDocument
	}
	return s.store.AddDocument(ctx, text, user)
}

// ListDocuments 返回与 query 相关的文档，limit 落在 [1, 200]，非正数时取 20。
func (s *memoryService) ListDocuments(ctx context.Context, query string, limit int) ([]model.Document, error) {
	switch {
	case limit <= 0:
		limit = defaultMemoryLimit
	case limit > maxMemoryLimit:
		limit = maxMemoryLimit
	}
	return s.store.Documents(ctx, strings.TrimSpace(query), limit)
}
