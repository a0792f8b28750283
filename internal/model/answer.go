package model

// Answer 是 agent 针对一个自然语言问题给出的结果。
type Answer struct {
	Question  string           `json:"question"`
	SQL       string           `json:"sql,omitempty"`
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	RowCount  int              `json:"rowCount"`
	Text      string           `json:"text,omitempty"`
	ResultURL string           `json:"resultUrl,omitempty"`
	// Error 记录 SQL 执行失败的原因；LLM 调用失败不会出现在这里，而是直接返回 error。
	Error string `json:"error,omitempty"`
}
