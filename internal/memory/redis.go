package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"sql-smart-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const redisDocumentsKey = "agent:memory:documents"

// RedisStore 把文档以 JSON 形式追加到 Redis 列表中。
type RedisStore struct {
	rdb      *redis.Client
	maxItems int
}

// NewRedisStore 创建一个 RedisStore。maxItems <= 0 时使用 1000。
func NewRedisStore(rdb *redis.Client, maxItems int) *RedisStore {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &RedisStore{rdb: rdb, maxItems: maxItems}
}

// AddDocument 追加文档并裁剪到容量上限。
func (s *RedisStore) AddDocument(ctx context.Context, text string, user *model.User) error {
	doc, err := newDocument(text, user)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal memory document: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, redisDocumentsKey, data)
	pipe.LTrim(ctx, redisDocumentsKey, int64(-s.maxItems), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append memory document: %w", err)
	}
	return nil
}

// Documents 读取全部文档后按与 LocalStore 相同的规则挑选。
func (s *RedisStore) Documents(ctx context.Context, query string, limit int) ([]model.Document, error) {
	values, err := s.rdb.LRange(ctx, redisDocumentsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory documents: %w", err)
	}
	docs := make([]model.Document, 0, len(values))
	for _, v := range values {
		var doc model.Document
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory document: %w", err)
		}
		docs = append(docs, doc)
	}
	return selectDocuments(docs, query, limit), nil
}
