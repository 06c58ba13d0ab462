// Package mcpserver implements the stdio JSON-RPC 2.0 Model Context
// Protocol surface: tools, resource templates, and server-initiated
// sampling requests.
package mcpserver

// JSON-RPC 2.0 envelope types.

// Request is a JSON-RPC 2.0 request, in either direction.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response, in either direction.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC error codes used by this server.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Notification is a JSON-RPC 2.0 notification (no id field, no reply expected).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// MCP lifecycle types.

// ServerCapabilities describes what this server supports.
type ServerCapabilities struct {
	Tools     *ToolCapabilities     `json:"tools,omitempty"`
	Resources *ResourceCapabilities `json:"resources,omitempty"`
}

// ToolCapabilities describes tool support.
type ToolCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourceCapabilities describes resource support.
type ResourceCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ClientCapabilities is the subset of the client's declared capabilities
// this server cares about: whether sampling/createMessage is available.
type ClientCapabilities struct {
	Sampling *struct{} `json:"sampling,omitempty"`
}

// InitializeParams is sent by the client to start the session.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ServerInfo         `json:"clientInfo"`
}

// InitializeResult is returned from initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerInfo identifies either end of the connection.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool types.

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON Schema for a tool's input object.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property is a single JSON Schema property.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Items       *Items   `json:"items,omitempty"`
}

// Items describes array item schema.
type Items struct {
	Type string `json:"type"`
}

// ToolsListResult is returned from tools/list.
type ToolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// CallToolParams is the params for tools/call.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult is returned from tools/call.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is a text content block, the only kind this server emits.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Resource types.

// ResourceTemplate describes a URI template clients can expand and read.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ListResourceTemplatesResult is returned from resources/templates/list.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ReadResourceParams is the params for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one item returned from resources/read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ReadResourceResult is returned from resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Sampling types (server -> client).

// ModelHint nudges the client toward a preferred model family.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// ModelPreferences expresses the server's priorities for a sampling request.
type ModelPreferences struct {
	Hints            []ModelHint `json:"hints,omitempty"`
	CostPriority     float64     `json:"costPriority,omitempty"`
	SpeedPriority    float64     `json:"speedPriority,omitempty"`
	IntelligencePriority float64 `json:"intelligencePriority,omitempty"`
}

// SamplingMessage is one turn in a createMessage request.
type SamplingMessage struct {
	Role    string               `json:"role"`
	Content SamplingMessageContent `json:"content"`
}

// SamplingMessageContent is a single text content block for a sampling message.
type SamplingMessageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CreateMessageParams is the params for a server-issued sampling/createMessage request.
type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences ModelPreferences  `json:"modelPreferences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	Temperature      float64           `json:"temperature,omitempty"`
	MaxTokens        int               `json:"maxTokens"`
	IncludeContext   string            `json:"includeContext,omitempty"`
}

// CreateMessageResult is the client's reply to sampling/createMessage.
type CreateMessageResult struct {
	Role    string                 `json:"role"`
	Content SamplingMessageContent `json:"content"`
	Model   string                 `json:"model,omitempty"`
}
