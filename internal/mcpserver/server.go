package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
)

const protocolVersion = "2024-11-05"

// Server implements the stdio MCP transport, owning a memoryservice.Service
// directly rather than proxying calls over HTTP. It also plays the
// server-to-client sampling requests (MergeKnowledge's distillation step)
// back through the same connection, which is why reads and writes are each
// independently synchronized: the read loop must keep draining stdin for a
// sampling reply while a tool call that issued it is still in flight.
type Server struct {
	svc    *memoryservice.Service
	logger *slog.Logger

	in  *bufio.Scanner
	out io.Writer

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *Response

	nextSamplingID int64
}

// NewServer constructs a Server reading requests from in and writing
// responses/outbound requests to out. NewServer registers the new server as
// svc's Sampler, since sampling can only happen over this connection.
func NewServer(in io.Reader, out io.Writer, svc *memoryservice.Service, logger *slog.Logger) *Server {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	s := &Server{
		svc:     svc,
		logger:  logger,
		in:      scanner,
		out:     out,
		pending: make(map[string]chan *Response),
	}
	svc.SetSampler(s)
	return s
}

// peekEnvelope is used to tell an inbound JSON-RPC response (no "method")
// from an inbound request/notification.
type peekEnvelope struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Run starts the stdio event loop and blocks until stdin closes.
func (s *Server) Run() error {
	for s.in.Scan() {
		line := s.in.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		lineCopy := append([]byte(nil), line...)

		var peek peekEnvelope
		if err := json.Unmarshal(lineCopy, &peek); err != nil {
			s.writeResponse(&Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error: " + err.Error()}})
			continue
		}

		if peek.Method == "" && (peek.Result != nil || peek.Error != nil) {
			s.routeResponse(peek)
			continue
		}

		var req Request
		if err := json.Unmarshal(lineCopy, &req); err != nil {
			s.writeResponse(&Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error: " + err.Error()}})
			continue
		}

		// Dispatch on its own goroutine: merge_knowledge issues an outbound
		// sampling request and blocks on its reply, which can only arrive
		// through this same read loop.
		go s.handleRequest(&req)
	}
	return s.in.Err()
}

func (s *Server) routeResponse(peek peekEnvelope) {
	var id string
	_ = json.Unmarshal(peek.ID, &id)

	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	s.pendingMu.Unlock()
	if !ok {
		s.logger.Warn("received response for unknown request id", "id", id)
		return
	}

	resp := &Response{Error: peek.Error}
	if peek.Result != nil {
		resp.Result = json.RawMessage(peek.Result)
	}
	ch <- resp
}

func (s *Server) handleRequest(req *Request) {
	var resp *Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		return
	case "tools/list":
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: toolDefinitions()}}
	case "tools/call":
		resp = s.handleToolsCall(req)
	case "resources/templates/list":
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Result: ListResourceTemplatesResult{ResourceTemplates: resourceTemplates()}}
	case "resources/read":
		resp = s.handleResourcesRead(req)
	case "ping":
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}}
	}
	if resp != nil {
		s.writeResponse(resp)
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools:     &ToolCapabilities{},
				Resources: &ResourceCapabilities{},
			},
			ServerInfo: ServerInfo{Name: "memorize-mcp", Version: "0.1.0"},
		},
	}
}

func (s *Server) handleToolsCall(req *Request) *Response {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}
	var params CallToolParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}

	ctx := context.Background()
	text, isError := s.dispatchTool(ctx, params.Name, params.Arguments)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  CallToolResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: isError},
	}
}

func (s *Server) handleResourcesRead(req *Request) *Response {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}
	var params ReadResourceParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}

	topic, query, err := parseKnowledgeURI(params.URI)
	if err != nil {
		return s.errorResponse(req.ID, CodeInvalidParams, err.Error())
	}

	results, err := s.svc.ReadKnowledgeResource(context.Background(), topic, query)
	if err != nil {
		return s.errorResponse(req.ID, CodeInternalError, err.Error())
	}

	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return s.errorResponse(req.ID, CodeInternalError, "marshal result: "+err.Error())
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ReadResourceResult{Contents: []ResourceContents{
			{URI: params.URI, MimeType: "application/json", Text: string(body)},
		}},
	}
}

// parseKnowledgeURI extracts topic and query from a knowledge://{topic}/{query} URI.
func parseKnowledgeURI(uri string) (topic, query string, err error) {
	const prefix = "knowledge://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("unsupported resource uri: %s", uri)
	}
	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed knowledge uri, expected knowledge://{topic}/{query}: %s", uri)
	}
	topic, err = url.PathUnescape(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("decode topic: %w", err)
	}
	query, err = url.PathUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("decode query: %w", err)
	}
	return topic, query, nil
}

// CreateMessage implements memoryservice.Sampler by issuing a
// sampling/createMessage request to the connected client and waiting for
// its reply, correlated by request id.
func (s *Server) CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	id := strconv.FormatInt(atomic.AddInt64(&s.nextSamplingID, 1), 10)
	ch := make(chan *Response, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	req := &Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "sampling/createMessage",
		Params: CreateMessageParams{
			Messages: []SamplingMessage{
				{Role: "user", Content: SamplingMessageContent{Type: "text", Text: userPrompt}},
			},
			ModelPreferences: ModelPreferences{
				Hints:                []ModelHint{{Name: "claude"}},
				CostPriority:         0.3,
				SpeedPriority:        0.5,
				IntelligencePriority: 0.8,
			},
			SystemPrompt:   systemPrompt,
			Temperature:    0.3,
			MaxTokens:      2000,
			IncludeContext: "none",
		},
	}
	s.writeRequest(req)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Minute):
		return "", fmt.Errorf("sampling request %s timed out", id)
	case resp := <-ch:
		if resp.Error != nil {
			return "", fmt.Errorf("sampling error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		var result CreateMessageResult
		if err := json.Unmarshal(resp.Result.(json.RawMessage), &result); err != nil {
			return "", fmt.Errorf("unmarshal sampling result: %w", err)
		}
		return result.Content.Text, nil
	}
}

func (s *Server) writeResponse(resp *Response) {
	resp.JSONRPC = "2.0"
	s.write(resp)
}

func (s *Server) writeRequest(req *Request) {
	s.write(req)
}

func (s *Server) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal outbound message", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fmt.Fprintf(s.out, "%s\n", data)
}

func (s *Server) errorResponse(id interface{}, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
