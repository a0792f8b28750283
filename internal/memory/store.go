// Package memory 提供 agent 长期记忆的存储实现。
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sql-smart-go/internal/model"

	"github.com/google/uuid"
)

// ErrUnauthorized 表示调用者无权写入记忆。
var ErrUnauthorized = errors.New("memory: user is not allowed to write documents")

// Store 定义了 agent 记忆的接口。写入只追加，不去重也不做版本管理。
type Store interface {
	AddDocument(ctx context.Context, text string, user *model.User) error
	// Documents 返回至多 limit 条与 query 相关的文档；query 为空时按写入顺序返回最近的文档。
	Documents(ctx context.Context, query string, limit int) ([]model.Document, error)
}

// newDocument 构造一条待写入的文档，要求写入者属于 admin 组。
func newDocument(text string, user *model.User) (model.Document, error) {
	if !user.HasGroup("admin") {
		return model.Document{}, ErrUnauthorized
	}
	return model.Document{
		ID:        uuid.NewString(),
		Text:      text,
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// LocalStore 是进程内的有界记忆，超过容量时淘汰最早的文档。
type LocalStore struct {
	mu       sync.RWMutex
	docs     []model.Document
	maxItems int
}

// NewLocalStore 创建一个 LocalStore。maxItems <= 0 时使用 1000。
func NewLocalStore(maxItems int) *LocalStore {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &LocalStore{maxItems: maxItems}
}

// AddDocument 追加一条文档。
func (s *LocalStore) AddDocument(_ context.Context, text string, user *model.User) error {
	doc, err := newDocument(text, user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	if over := len(s.docs) - s.maxItems; over > 0 {
		s.docs = append([]model.Document(nil), s.docs[over:]...)
	}
	return nil
}

// Documents 在 query 非空时优先返回包含 query 中任一词的文档，其余按写入顺序补齐。
func (s *LocalStore) Documents(_ context.Context, query string, limit int) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectDocuments(s.docs, query, limit), nil
}

// selectDocuments 对已按写入顺序排列的文档做简单的关键词优先选择，结果保持写入顺序。
func selectDocuments(docs []model.Document, query string, limit int) []model.Document {
	if limit <= 0 || limit > len(docs) {
		limit = len(docs)
	}
	terms := strings.Fields(strings.ToLower(query))
	picked := make([]bool, len(docs))
	n := 0
	if len(terms) > 0 {
		for i := len(docs) - 1; i >= 0 && n < limit; i-- {
			text := strings.ToLower(docs[i].Text)
			for _, term := range terms {
				if strings.Contains(text, term) {
					picked[i] = true
					n++
					break
				}
			}
		}
	}
	for i := len(docs) - 1; i >= 0 && n < limit; i-- {
		if !picked[i] {
			picked[i] = true
			n++
		}
	}
	out := make([]model.Document, 0, n)
	for i, doc := range docs {
		if picked[i] {
			out = append(out, doc)
		}
	}
	return out
}
