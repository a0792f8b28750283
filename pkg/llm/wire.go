package llm

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// contentPreservingDoer 在 chat-completion 请求体中补回被 go-openai 的 omitempty 省略的空 content，
// 多数 OpenAI 兼容服务会拒绝没有 content 字段的消息。
type contentPreservingDoer struct {
	next openai.HTTPDoer
}

func (d contentPreservingDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return d.next.Do(req)
	}
	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	body = fillEmptyContent(body)
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return d.next.Do(req)
}

// fillEmptyContent 为缺少 content 的消息写入 ""；无法解析的请求体原样返回。
func fillEmptyContent(body []byte) []byte {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}
	var messages []map[string]json.RawMessage
	if err := json.Unmarshal(payload["messages"], &messages); err != nil {
		return body
	}
	changed := false
	for _, m := range messages {
		if _, ok := m["content"]; !ok {
			m["content"] = json.RawMessage(`""`)
			changed = true
		}
	}
	if !changed {
		return body
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return body
	}
	payload["messages"] = raw
	out, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return out
}
