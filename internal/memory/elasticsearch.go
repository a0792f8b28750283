package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sql-smart-go/internal/model"
	"sql-smart-go/pkg/es"

	"github.com/elastic/go-elasticsearch/v8"
)

// DocumentMapping 是记忆索引的 mapping。
const DocumentMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"text": { "type": "text" },
			"userId": { "type": "keyword" },
			"createdAt": { "type": "date" }
		}
	}
}`

// ElasticStore 把文档写入 Elasticsearch，检索时使用全文匹配。
type ElasticStore struct {
	client    *elasticsearch.Client
	indexName string
}

// NewElasticStore 创建 ElasticStore 并确保索引存在。
func NewElasticStore(ctx context.Context, client *elasticsearch.Client, indexName string) (*ElasticStore, error) {
	if err := es.EnsureIndex(ctx, client, indexName, DocumentMapping); err != nil {
		return nil, err
	}
	return &ElasticStore{client: client, indexName: indexName}, nil
}

// AddDocument 索引一条文档。
func (s *ElasticStore) AddDocument(ctx context.Context, text string, user *model.User) error {
	doc, err := newDocument(text, user)
	if err != nil {
		return err
	}
	if err := es.IndexDocument(ctx, s.client, s.indexName, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to index memory document: %w", err)
	}
	return nil
}

// Documents 按相关度检索文档，query 为空时返回最近写入的文档。结果按写入时间排序。
func (s *ElasticStore) Documents(ctx context.Context, query string, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	sources, err := es.Search(ctx, s.client, s.indexName, searchQuery(query, limit))
	if err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(sources))
	for _, src := range sources {
		var doc model.Document
		if err := json.Unmarshal(src, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory document: %w", err)
		}
		docs = append(docs, doc)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

func searchQuery(query string, limit int) map[string]any {
	if query == "" {
		return map[string]any{
			"query": map[string]any{"match_all": map[string]any{}},
			"sort":  []map[string]any{{"createdAt": map[string]any{"order": "desc"}}},
			"size":  limit,
		}
	}
	// match 子句只提升相关文档的得分，不过滤掉 schema 等不含查询词的文档
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"match_all": map[string]any{}},
				"should": map[string]any{"match": map[string]any{"text": query}},
			},
		},
		"size": limit,
	}
}
