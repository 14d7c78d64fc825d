package models

// 工具执行的结构化错误码
const (
	ToolErrorUnknownTool = "unknown_tool"
	ToolErrorTimeout     = "timeout"
)

// ToolRequest 工具执行请求（由下游 AI 编排器创建）
type ToolRequest struct {
	ToolName string                 `json:"tool_name"`
	Params   map[string]interface{} `json:"params"`
}

// ToolResult 工具执行结果
// Payload 和 Error 二选一；Error 非空时为结构化错误码或具体失败原因
type ToolResult struct {
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// OK 判断执行是否成功
func (r ToolResult) OK() bool {
	return r.Error == ""
}
