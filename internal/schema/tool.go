package schema

// ToolDescriptor describes one tool advertised by a tool provider.
// Name is unique within a registry snapshot only.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Origin      string         `json:"origin"`
}

// ToolInvocationRequest is a tool call requested by a model.
type ToolInvocationRequest struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolInvocationResult is the outcome of one dispatched tool call.
type ToolInvocationResult struct {
	ToolName      string
	CorrelationID string
	Content       string
	IsError       bool
}

// ToolOutput is the unwrapped payload returned by a tool provider.
type ToolOutput struct {
	Content string
	IsError bool
}
