// Package sqlrunner 在业务数据库上执行任意 SQL 并返回表格结果。
package sqlrunner

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Runner 定义了 SQL 执行工具的接口。
type Runner interface {
	Run(ctx context.Context, query string, args ...any) (*Result, error)
	Dialect() string
}

// Result 是一次查询的表格结果，Rows 与 Columns 按列位置对应。
type Result struct {
	Columns []string
	Rows    [][]any
}

// Records 将结果转成按列名索引的行，便于 JSON 输出。
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// CSV 以表头 + 数据行的形式导出结果。
func (r *Result) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(r.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) && row[i] != nil {
				record[i] = fmt.Sprint(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type gormRunner struct {
	db      *gorm.DB
	maxRows int
}

// New 创建基于 gorm 的 Runner。maxRows <= 0 表示不限制返回行数。
func New(db *gorm.DB, maxRows int) Runner {
	return &gormRunner{db: db, maxRows: maxRows}
}

func (r *gormRunner) Dialect() string {
	return r.db.Dialector.Name()
}

// Run 执行查询并逐行扫描为通用值。
func (r *gormRunner) Run(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := r.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if r.maxRows > 0 && len(result.Rows) >= r.maxRows {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// normalize 把驱动返回的 []byte 转成字符串，时间统一为 RFC3339。
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
