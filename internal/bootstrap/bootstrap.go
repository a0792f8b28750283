// Package bootstrap 在服务启动时为 agent 的记忆注入 schema 上下文。
//
// 流程是一次性的、同步的：先自省数据库目录，失败或为空时整体替换为手写的
// 兜底 schema 文档；随后把 schema 文档与固定注释写入记忆。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/model"
	"sql-smart-go/pkg/database"
	"sql-smart-go/pkg/log"
	"sql-smart-go/pkg/sqlrunner"
)

// FallbackSchemaDocument 是目录自省不可用时使用的手写 schema 文档。
const FallbackSchemaDocument = `Table "Vendor" has column "id" with type integer; Table "Vendor" has column "name" with type character varying;
Table "Invoice" has column "id" with type integer; Table "Invoice" has column "invoiceNumber" with type character varying;
Table "Invoice" has column "issueDate" with type timestamp without time zone; Table "Invoice" has column "dueDate" with type timestamp without time zone;
Table "Invoice" has column "totalAmount" with type numeric; Table "Invoice" has column "status" with type "InvoiceStatus";
Table "Invoice" has column "vendorId" with type integer;`

// Annotations 是无论 schema 来源如何都会写入的表语义说明。
var Annotations = []string{
	"The 'Invoice' table contains all invoices. The 'Vendor' table contains vendor information.",
	"The 'LineItem' table is empty and should not be used for queries.",
}

// DefaultTimeout 是自省与记忆写入各自的默认超时。
const DefaultTimeout = 5 * time.Second

// ErrNoColumns 表示目录查询成功但没有返回任何列。
var ErrNoColumns = errors.New("catalog returned no columns")

// Catalog 是执行目录查询所需的最小能力，sqlrunner.Runner 满足该接口。
type Catalog interface {
	Run(ctx context.Context, query string, args ...any) (*sqlrunner.Result, error)
	Dialect() string
}

// IntrospectionError 表示目录自省失败（连接、权限、结果格式或结果为空）。
type IntrospectionError struct {
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection failed: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// MemoryWriteError 表示向记忆写入 schema 或注释失败。
type MemoryWriteError struct {
	Kind string // "schema" 或 "annotation"
	Err  error
}

func (e *MemoryWriteError) Error() string {
	return fmt.Sprintf("failed to write %s document to memory: %v", e.Kind, e.Err)
}

func (e *MemoryWriteError) Unwrap() error { return e.Err }

// Introspection 是一次目录自省的结果：要么 Facts 非空且 Err 为 nil，要么 Err 非空且 Facts 为空。
type Introspection struct {
	Facts []model.SchemaFact
	Err   error
}

// OK 报告自省是否成功。
func (r Introspection) OK() bool { return r.Err == nil }

// Source 标识最终 schema 文档的来源。
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// CatalogQuery 返回指定方言下的目录查询与参数。故意不加 ORDER BY，按目录返回顺序使用。
func CatalogQuery(dialect, schema string) (string, []any) {
	const base = "SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = "
	if schema != "" {
		return base + "?", []any{schema}
	}
	if dialect == database.DialectMySQL {
		return base + "DATABASE()", nil
	}
	return base + "?", []any{"public"}
}

// Introspect 查询目录中 schema 命名空间下的所有列。
func Introspect(ctx context.Context, catalog Catalog, schema string) Introspection {
	query, args := CatalogQuery(catalog.Dialect(), schema)
	res, err := catalog.Run(ctx, query, args...)
	if err != nil {
		return Introspection{Err: &IntrospectionError{Err: err}}
	}
	facts, err := factsFromResult(res)
	if err != nil {
		return Introspection{Err: &IntrospectionError{Err: err}}
	}
	if len(facts) == 0 {
		return Introspection{Err: &IntrospectionError{Err: ErrNoColumns}}
	}
	return Introspection{Facts: facts}
}

// factsFromResult 按列名取出三元组；缺列或单元格不是字符串都视为格式错误，且丢弃已解析的部分。
func factsFromResult(res *sqlrunner.Result) ([]model.SchemaFact, error) {
	if res == nil {
		return nil, errors.New("malformed catalog result: nil result")
	}
	idx := make([]int, 3)
	for i, name := range []string{"table_name", "column_name", "data_type"} {
		idx[i] = columnIndex(res, name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("malformed catalog result: missing column %q", name)
		}
	}
	facts := make([]model.SchemaFact, 0, len(res.Rows))
	for n, row := range res.Rows {
		var cells [3]string
		for i, j := range idx {
			if j >= len(row) {
				return nil, fmt.Errorf("malformed catalog result: row %d is too short", n)
			}
			s, ok := row[j].(string)
			if !ok {
				return nil, fmt.Errorf("malformed catalog result: row %d column %d is %T", n, j, row[j])
			}
			cells[i] = s
		}
		facts = append(facts, model.SchemaFact{Table: cells[0], Column: cells[1], DataType: cells[2]})
	}
	return facts, nil
}

// columnIndex 忽略大小写匹配列名，MySQL 的 information_schema 返回大写列名。
func columnIndex(res *sqlrunner.Result, name string) int {
	for i, c := range res.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// RenderFact 渲染单条 schema 事实。
func RenderFact(f model.SchemaFact) string {
	return fmt.Sprintf("Table %s has column %s with type %s;", f.Table, f.Column, f.DataType)
}

// RenderSchema 每条事实一行，按给定顺序以换行连接。
func RenderSchema(facts []model.SchemaFact) string {
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = RenderFact(f)
	}
	return strings.Join(lines, "\n")
}

// SchemaDocument 根据自省结果选择 schema 文档：成功时渲染实时事实，否则整体使用兜底文档。
func SchemaDocument(r Introspection) (string, Source) {
	if r.OK() && len(r.Facts) > 0 {
		return RenderSchema(r.Facts), SourceLive
	}
	return FallbackSchemaDocument, SourceFallback
}

// Deps 是训练流程所需的协作者。
type Deps struct {
	Catalog Catalog
	Memory  memory.Store
	// Schema 为空时按方言使用默认命名空间。
	Schema string
	// Timeout 分别约束自省与记忆写入两个阶段；<= 0 时使用 5 秒。
	Timeout time.Duration
}

// Result 汇总一次训练的结果。
type Result struct {
	Source           Source
	Facts            int
	Document         string
	DocumentsWritten int
	IntrospectionErr error
}

// BuildSchema 只执行自省与渲染，不写入记忆。
func BuildSchema(ctx context.Context, catalog Catalog, schema string) Result {
	r := Introspect(ctx, catalog, schema)
	doc, source := SchemaDocument(r)
	return Result{Source: source, Facts: len(r.Facts), Document: doc, IntrospectionErr: r.Err}
}

// Run 执行完整的训练流程。记忆写入失败以 *MemoryWriteError 返回，调用方应视为启动失败。
func Run(ctx context.Context, deps Deps) (Result, error) {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log.Info("[Bootstrap] 开始训练 schema 上下文")
	introCtx, cancelIntro := context.WithTimeout(ctx, timeout)
	res := BuildSchema(introCtx, deps.Catalog, deps.Schema)
	cancelIntro()
	if res.IntrospectionErr != nil {
		log.Warnw("[Bootstrap] 无法自省数据库 schema，使用手写 schema 文档", "error", res.IntrospectionErr)
	} else {
		log.Infof("[Bootstrap] 自省得到 %d 个列", res.Facts)
	}

	// 写入阶段单独计时，自省耗尽超时不影响写入
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	admin := model.AdminUser()
	if res.Document != "" {
		if err := deps.Memory.AddDocument(ctx, res.Document, admin); err != nil {
			return res, &MemoryWriteError{Kind: "schema", Err: err}
		}
		res.DocumentsWritten++
	}

	for _, note := range Annotations {
		if err := deps.Memory.AddDocument(ctx, note, admin); err != nil {
			return res, &MemoryWriteError{Kind: "annotation", Err: err}
		}
		res.DocumentsWritten++
	}

	log.Infow("[Bootstrap] 训练完成",
		"source", res.Source,
		"facts", res.Facts,
		"documents", res.DocumentsWritten,
	)
	return res, nil
}
