package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
)

const ProtocolVersion = "2024-11-05"

type Server struct {
	name        string
	version     string
	tools       map[string]*Tool
	mu          sync.RWMutex
	input       io.Reader
	output      io.Writer
	outMu       sync.Mutex
	inflight    sync.WaitGroup
	initialized atomic.Bool
	logLevel    atomic.Int32

	onInitialized func()
	fallback      ToolHandlerWithName
}

type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	Handler     ToolHandler            `json:"-"`
}

type ToolHandler func(ctx context.Context, params map[string]interface{}) (*ToolResult, error)

// ToolHandlerWithName receives calls for tools that are not registered.
type ToolHandlerWithName func(ctx context.Context, name string, params map[string]interface{}) (*ToolResult, error)

// CodedError is an error that maps onto a JSON-RPC error object instead of
// an isError tool result.
type CodedError interface {
	error
	RPCCode() int
	RPCMessage() string
	RPCData() interface{}
}

type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewServer(name, version string) *Server {
	return &Server{
		name:    name,
		version: version,
		tools:   make(map[string]*Tool),
		input:   os.Stdin,
		output:  os.Stdout,
	}
}

func (s *Server) SetIO(input io.Reader, output io.Writer) {
	s.input = input
	s.output = output
}

// OnInitialized registers a hook run once the initialize response has been
// written.
func (s *Server) OnInitialized(fn func()) {
	s.onInitialized = fn
}

// SetFallback routes calls for unregistered tool names to fn instead of
// answering with an error directly.
func (s *Server) SetFallback(fn ToolHandlerWithName) {
	s.fallback = fn
}

func (s *Server) RegisterTool(tool *Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = tool
}

// Initialized reports whether a client has completed the handshake.
func (s *Server) Initialized() bool {
	return s.initialized.Load()
}

// Run reads newline-delimited JSON-RPC messages until EOF or ctx is done.
// Tool calls run concurrently; Run waits for them before returning.
func (s *Server) Run(ctx context.Context) error {
	defer s.inflight.Wait()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.input)
		scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if len(line) == 0 {
				continue
			}

			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				s.sendError(nil, -32700, "Parse error", err.Error())
				continue
			}

			if req.Method == "tools/call" {
				s.inflight.Add(1)
				go func() {
					defer s.inflight.Done()
					s.handleRequest(ctx, &req)
				}()
				continue
			}
			s.handleRequest(ctx, &req)
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req *Request) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "ping":
		s.sendResult(req.ID, map[string]interface{}{})
	case "tools/list":
		s.handleToolsList(req)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	case "logging/setLevel":
		s.handleSetLevel(req)
	case "notifications/initialized", "notifications/cancelled":
		// Acknowledged, no response needed
	default:
		s.sendError(req.ID, -32601, "Method not found", req.Method)
	}
}

func (s *Server) handleInitialize(req *Request) {
	result := map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools":   map[string]interface{}{},
			"logging": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}
	s.sendResult(req.ID, result)

	if s.initialized.CompareAndSwap(false, true) && s.onInitialized != nil {
		s.onInitialized()
	}
}

func (s *Server) handleToolsList(req *Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]map[string]interface{}, 0, len(s.tools))
	for _, name := range names {
		tool := s.tools[name]
		tools = append(tools, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		})
	}

	s.sendResult(req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	s.mu.RLock()
	tool, ok := s.tools[params.Name]
	s.mu.RUnlock()

	var (
		result *ToolResult
		err    error
	)
	switch {
	case ok:
		result, err = tool.Handler(ctx, params.Arguments)
	case s.fallback != nil:
		result, err = s.fallback(ctx, params.Name, params.Arguments)
	default:
		s.sendError(req.ID, -32602, "Unknown tool", params.Name)
		return
	}

	if err != nil {
		var coded CodedError
		if errors.As(err, &coded) {
			s.sendRPCError(req.ID, &RPCError{
				Code:    coded.RPCCode(),
				Message: coded.RPCMessage(),
				Data:    coded.RPCData(),
			})
			return
		}
		s.sendResult(req.ID, ErrorResult(err))
		return
	}

	s.sendResult(req.ID, result)
}

func (s *Server) handleSetLevel(req *Request) {
	var params struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, -32602, "Invalid params", err.Error())
		return
	}
	level, ok := levelRank[params.Level]
	if !ok {
		s.sendError(req.ID, -32602, "Invalid params", "unknown level: "+params.Level)
		return
	}
	s.logLevel.Store(int32(level))
	s.sendResult(req.ID, map[string]interface{}{})
}

// Notify sends a JSON-RPC notification to the client.
func (s *Server) Notify(method string, params interface{}) {
	s.write(Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

func (s *Server) sendResult(id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	s.write(resp)
}

func (s *Server) sendError(id interface{}, code int, message, data string) {
	s.sendRPCError(id, &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func (s *Server) sendRPCError(id interface{}, rpcErr *RPCError) {
	resp := Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	}
	s.write(resp)
}

func (s *Server) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.output, string(data))
}

func TextResult(text string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func ErrorResult(err error) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

func BuildInputSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func EnumProperty(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
		"enum":        values,
	}
}
