// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sql-smart-go/internal/config"
	"sql-smart-go/internal/memory"
	"sql-smart-go/internal/model"
	"sql-smart-go/internal/repository"
	"sql-smart-go/pkg/database"
	"sql-smart-go/pkg/kafka"
	"sql-smart-go/pkg/llm"
	"sql-smart-go/pkg/log"
	"sql-smart-go/pkg/sqlrunner"
	"sql-smart-go/pkg/storage"

	"github.com/google/uuid"
)

// ErrEmptyQuestion 表示问题为空。
var ErrEmptyQuestion = errors.New("question is required")

// ErrNotReadOnly 表示生成的 SQL 不是只读语句。
var ErrNotReadOnly = errors.New("only read-only queries are allowed")

// AgentService 定义了问答 agent 的接口。
type AgentService interface {
	Ask(ctx context.Context, question string, user *model.User) (*model.Answer, error)
}

// AgentDeps 是 agent 的协作者。History、Publisher 与 Exporter 可以为 nil。
type AgentDeps struct {
	LLM       llm.Chatter
	Runner    sqlrunner.Runner
	Memory    memory.Store
	History   repository.ConversationRepository
	Publisher kafka.Publisher
	Exporter  storage.Exporter
	Config    config.AgentConfig
}

type agentService struct {
	deps AgentDeps
}

// NewAgentService 组装 agent。
func NewAgentService(deps AgentDeps) AgentService {
	return &agentService{deps: deps}
}

// Ask 检索记忆、单次调用 LLM 生成 SQL、执行并返回结果。
// LLM 调用失败直接返回错误；SQL 执行失败记录在 Answer.Error 中。
func (s *agentService) Ask(ctx context.Context, question string, user *model.User) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	// 1. 检索记忆中的 schema 与注释
	docs, err := s.deps.Memory.Documents(ctx, question, s.deps.Config.ContextDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve memory: %w", err)
	}

	// 2. 构建 system 消息、历史与问题
	history := s.loadHistory(ctx, user)
	messages := composeMessages(s.buildSystemMessage(docs), history, question)

	// 3. 调用 LLM
	reply, err := s.deps.LLM.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	answer := &model.Answer{Question: question}
	sql, prose := ExtractSQL(reply)
	answer.SQL = sql
	answer.Text = prose

	// 4. 执行 SQL
	if sql != "" {
		s.runSQL(ctx, answer)
	}

	// 5. 保存对话并发送审计事件，失败只记录日志
	s.record(ctx, user, reply, answer)
	return answer, nil
}

func (s *agentService) runSQL(ctx context.Context, answer *model.Answer) {
	if s.deps.Config.ReadOnly && !IsReadOnly(answer.SQL) {
		log.Warnf("[AgentService] 拒绝执行非只读 SQL: %s", answer.SQL)
		answer.Error = ErrNotReadOnly.Error()
		return
	}
	result, err := s.deps.Runner.Run(ctx, answer.SQL)
	if err != nil {
		log.Warnw("[AgentService] SQL 执行失败", "sql", answer.SQL, "error", err)
		answer.Error = err.Error()
		return
	}
	answer.Columns = result.Columns
	answer.Rows = result.Records()
	answer.RowCount = len(result.Rows)

	if s.deps.Exporter != nil && answer.RowCount > 0 {
		data, err := result.CSV()
		if err != nil {
			log.Errorf("[AgentService] 生成 CSV 失败: %v", err)
			return
		}
		url, err := s.deps.Exporter.Export(ctx, fmt.Sprintf("results/%s.csv", uuid.NewString()), data)
		if err != nil {
			log.Errorf("[AgentService] 导出查询结果失败: %v", err)
			return
		}
		answer.ResultURL = url
	}
}

func (s *agentService) loadHistory(ctx context.Context, user *model.User) []model.ChatMessage {
	if s.deps.History == nil || s.deps.Config.HistoryMessages <= 0 {
		return nil
	}
	history, err := s.deps.History.GetConversationHistory(ctx, user.ID)
	if err != nil {
		log.Errorf("Failed to load conversation history: %v", err)
		return nil
	}
	if n := s.deps.Config.HistoryMessages; len(history) > n {
		history = history[len(history)-n:]
	}
	return history
}

func (s *agentService) record(ctx context.Context, user *model.User, reply string, answer *model.Answer) {
	if s.deps.History != nil && reply != "" {
		// 使用后台上下文，即使请求被取消也保存已生成的答案
		if err := s.deps.History.AppendExchange(context.Background(), user.ID, answer.Question, reply); err != nil {
			log.Errorf("Failed to save conversation history: %v", err)
		}
	}
	if s.deps.Publisher != nil {
		event := kafka.AskEvent{
			Question:  answer.Question,
			SQL:       answer.SQL,
			RowCount:  answer.RowCount,
			UserID:    user.ID,
			Error:     answer.Error,
			Timestamp: time.Now().UTC(),
		}
		if err := s.deps.Publisher.Publish(ctx, event); err != nil {
			log.Errorf("Failed to publish ask event: %v", err)
		}
	}
}

const defaultRules = `You are a SQL expert. Answer the user's question by writing exactly one SQL query for a %s database.
Use only the tables and columns described in the context below and follow its notes about which tables to avoid.
Return the query inside a ` + "```sql" + ` code block, followed by at most one sentence explaining it.`

func (s *agentService) buildSystemMessage(docs []model.Document) string {
	dialect := database.DialectPostgres
	if s.deps.Runner != nil {
		dialect = s.deps.Runner.Dialect()
	}
	var sys strings.Builder
	if rules := s.deps.Config.Rules; rules != "" {
		sys.WriteString(rules)
	} else {
		fmt.Fprintf(&sys, defaultRules, dialect)
	}
	if dialect == database.DialectPostgres {
		sys.WriteString("\nQuote identifiers that contain uppercase letters with double quotes, e.g. \"Invoice\".\"totalAmount\".")
	}
	sys.WriteString("\n\n<<CONTEXT>>\n")
	if len(docs) == 0 {
		sys.WriteString("（无可用的 schema 上下文）\n")
	}
	for _, d := range docs {
		sys.WriteString(d.Text)
		sys.WriteString("\n")
	}
	sys.WriteString("<<END>>")
	return sys.String()
}

func composeMessages(systemMsg string, history []model.ChatMessage, question string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return msgs
}

var fencedSQL = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")

// ExtractSQL 从 LLM 回复中取出 SQL：优先取第一个代码块，否则回复本身以 SELECT/WITH 开头时整体视为 SQL。
// 第二个返回值是去掉代码块后的说明文字。
func ExtractSQL(reply string) (sql, prose string) {
	reply = strings.TrimSpace(reply)
	if m := fencedSQL.FindStringSubmatchIndex(reply); m != nil {
		sql = reply[m[2]:m[3]]
		prose = strings.TrimSpace(reply[:m[0]] + " " + reply[m[1]:])
		return trimStatement(sql), prose
	}
	if firstKeyword(reply) == "SELECT" || firstKeyword(reply) == "WITH" {
		return trimStatement(reply), ""
	}
	return "", reply
}

func trimStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}

func firstKeyword(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimLeft(fields[0], "("))
}

var writeKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE|GRANT|REVOKE|MERGE|CALL|COPY)\b`)

// IsReadOnly 判断 SQL 是否为单条只读语句。判断偏保守：字符串字面量中的关键字也会被拒绝。
func IsReadOnly(sql string) bool {
	sql = trimStatement(sql)
	if sql == "" || strings.Contains(sql, ";") {
		return false
	}
	switch firstKeyword(sql) {
	case "SELECT", "WITH", "SHOW", "EXPLAIN", "DESCRIBE", "VALUES":
	default:
		return false
	}
	return !writeKeywords.MatchString(sql)
}
