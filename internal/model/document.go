package model

import "time"

// Document 是存放在 agent 记忆中的一条文本记录。
// 记忆是只追加的：写入后不做更新或去重。
type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
