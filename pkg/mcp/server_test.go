package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the test read output while Run goroutines write to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type codedErr struct{}

func (codedErr) Error() string        { return "Unknown tool: nope" }
func (codedErr) RPCCode() int         { return -32601 }
func (codedErr) RPCMessage() string   { return "Unknown tool: nope" }
func (codedErr) RPCData() interface{} { return map[string]interface{}{"kind": "MethodNotFound"} }

func echoTool() *Tool {
	return &Tool{
		Name:        "echo",
		Description: "Echo back the input",
		InputSchema: BuildInputSchema(
			map[string]interface{}{
				"message": StringProperty("Message to echo"),
			},
			[]string{"message"},
		),
		Handler: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
			msg, err := GetStringParam(params, "message", true)
			if err != nil {
				return nil, err
			}
			return TextResult("Echo: " + msg), nil
		},
	}
}

func decodeResponse(t *testing.T, line []byte) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func callRequest(t *testing.T, id int, name string, args map[string]interface{}) *Request {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	require.NoError(t, err)
	return &Request{JSONRPC: "2.0", ID: id, Method: "tools/call", Params: params}
}

func TestNewServer(t *testing.T) {
	server := NewServer("test-server", "1.0.0")
	assert.NotNil(t, server)
	assert.Equal(t, "test-server", server.name)
	assert.Equal(t, "1.0.0", server.version)
	assert.False(t, server.Initialized())
}

func TestRegisterTool(t *testing.T) {
	server := NewServer("test-server", "1.0.0")
	server.RegisterTool(echoTool())

	server.mu.RLock()
	defer server.mu.RUnlock()
	assert.Contains(t, server.tools, "echo")
}

func TestHandleInitialize(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("test-server", "1.0.0")
	server.SetIO(strings.NewReader(""), &output)

	hooks := 0
	server.OnInitialized(func() { hooks++ })

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	resp := decodeResponse(t, output.Bytes())
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, float64(1), resp.ID)
	assert.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	caps, ok := result["capabilities"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, caps, "logging")

	assert.True(t, server.Initialized())
	assert.Equal(t, 1, hooks)

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 2, Method: "initialize"})
	assert.Equal(t, 1, hooks)
}

func TestHandleToolsList(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("test-server", "1.0.0")
	server.SetIO(strings.NewReader(""), &output)
	server.RegisterTool(echoTool())
	server.RegisterTool(&Tool{Name: "alpha", InputSchema: BuildInputSchema(map[string]interface{}{}, []string{})})

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"})

	resp := decodeResponse(t, output.Bytes())
	assert.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	tools, ok := result["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha", tools[0].(map[string]interface{})["name"])
	assert.Equal(t, "echo", tools[1].(map[string]interface{})["name"])
}

func TestHandleToolsCall(t *testing.T) {
	t.Run("registered tool", func(t *testing.T) {
		var output bytes.Buffer
		server := NewServer("test-server", "1.0.0")
		server.SetIO(strings.NewReader(""), &output)
		server.RegisterTool(echoTool())

		server.handleRequest(context.Background(), callRequest(t, 3, "echo", map[string]interface{}{"message": "hello"}))

		resp := decodeResponse(t, output.Bytes())
		assert.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		content := result["content"].([]interface{})
		assert.Equal(t, "Echo: hello", content[0].(map[string]interface{})["text"])
	})

	t.Run("plain error becomes error result", func(t *testing.T) {
		var output bytes.Buffer
		server := NewServer("test-server", "1.0.0")
		server.SetIO(strings.NewReader(""), &output)
		server.RegisterTool(echoTool())

		server.handleRequest(context.Background(), callRequest(t, 4, "echo", nil))

		resp := decodeResponse(t, output.Bytes())
		assert.Nil(t, resp.Error)
		assert.Equal(t, true, resp.Result.(map[string]interface{})["isError"])
	})

	t.Run("unknown tool without fallback", func(t *testing.T) {
		var output bytes.Buffer
		server := NewServer("test-server", "1.0.0")
		server.SetIO(strings.NewReader(""), &output)

		server.handleRequest(context.Background(), callRequest(t, 5, "nope", nil))

		resp := decodeResponse(t, output.Bytes())
		require.NotNil(t, resp.Error)
		assert.Equal(t, -32602, resp.Error.Code)
	})

	t.Run("fallback with coded error", func(t *testing.T) {
		var output bytes.Buffer
		server := NewServer("test-server", "1.0.0")
		server.SetIO(strings.NewReader(""), &output)

		var gotName string
		server.SetFallback(func(ctx context.Context, name string, params map[string]interface{}) (*ToolResult, error) {
			gotName = name
			return nil, codedErr{}
		})

		server.handleRequest(context.Background(), callRequest(t, 6, "nope", nil))

		assert.Equal(t, "nope", gotName)
		resp := decodeResponse(t, output.Bytes())
		require.NotNil(t, resp.Error)
		assert.Equal(t, -32601, resp.Error.Code)
		assert.Equal(t, "Unknown tool: nope", resp.Error.Message)
		assert.Equal(t, "MethodNotFound", resp.Error.Data.(map[string]interface{})["kind"])
	})

	t.Run("invalid params", func(t *testing.T) {
		var output bytes.Buffer
		server := NewServer("test-server", "1.0.0")
		server.SetIO(strings.NewReader(""), &output)

		server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})

		resp := decodeResponse(t, output.Bytes())
		require.NotNil(t, resp.Error)
		assert.Equal(t, -32602, resp.Error.Code)
	})
}

func TestHandleUnknownMethod(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("test-server", "1.0.0")
	server.SetIO(strings.NewReader(""), &output)

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 8, Method: "resources/list"})

	resp := decodeResponse(t, output.Bytes())
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestNotificationsProduceNoOutput(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("test-server", "1.0.0")
	server.SetIO(strings.NewReader(""), &output)

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.Empty(t, output.String())
}

func TestLogMessage(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("test-server", "1.0.0")
	server.SetIO(strings.NewReader(""), &output)

	server.LogMessage("info", "textwell", "before handshake")
	assert.Empty(t, output.String())

	server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	output.Reset()

	server.LogMessage("info", "textwell", "Server started and ready")

	var note Notification
	require.NoError(t, json.Unmarshal(output.Bytes(), &note))
	assert.Equal(t, "notifications/message", note.Method)
	params := note.Params.(map[string]interface{})
	assert.Equal(t, "info", params["level"])
	assert.Equal(t, "textwell", params["logger"])
	assert.Equal(t, "Server started and ready", params["data"])

	t.Run("set level filters lower severities", func(t *testing.T) {
		output.Reset()
		server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 2, Method: "logging/setLevel", Params: json.RawMessage(`{"level":"error"}`)})
		resp := decodeResponse(t, output.Bytes())
		assert.Nil(t, resp.Error)

		output.Reset()
		server.LogMessage("info", "textwell", "filtered")
		server.LogMessage("unknown", "textwell", "filtered")
		assert.Empty(t, output.String())
		server.LogMessage("error", "textwell", "kept")
		assert.Contains(t, output.String(), "kept")
	})

	t.Run("set level rejects unknown level", func(t *testing.T) {
		output.Reset()
		server.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 3, Method: "logging/setLevel", Params: json.RawMessage(`{"level":"loud"}`)})
		resp := decodeResponse(t, output.Bytes())
		require.NotNil(t, resp.Error)
	})
}

func TestRunConcurrentToolCalls(t *testing.T) {
	release := make(chan struct{})
	server := NewServer("test-server", "1.0.0")
	server.RegisterTool(&Tool{
		Name: "block",
		Handler: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
			<-release
			return TextResult("released"), nil
		},
	})

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"block","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		"",
		`not json`,
	}, "\n") + "\n"

	out := &syncBuffer{}
	server.SetIO(strings.NewReader(input), out)

	done := make(chan error, 1)
	go func() { done <- server.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(out.Lines()) == 2 }, time.Second, 5*time.Millisecond)

	// The ping and the parse error are answered while the call is blocked.
	lines := out.Lines()
	assert.Equal(t, float64(2), decodeResponse(t, []byte(lines[0])).ID)
	assert.Equal(t, -32700, decodeResponse(t, []byte(lines[1])).Error.Code)

	close(release)
	require.NoError(t, <-done)

	lines = out.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, float64(1), decodeResponse(t, []byte(lines[2])).ID)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	server := NewServer("test-server", "1.0.0")
	server.SetIO(reader, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTextResult(t *testing.T) {
	result := TextResult("test message")
	assert.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "test message", result.Content[0].Text)
	assert.False(t, result.IsError)
}

func TestErrorResult(t *testing.T) {
	result := ErrorResult(assert.AnError)
	assert.True(t, result.IsError)
	assert.Len(t, result.Content, 1)
}

func TestBuildInputSchema(t *testing.T) {
	schema := BuildInputSchema(
		map[string]interface{}{
			"text": StringProperty("Text to write"),
			"mode": EnumProperty("How to write", "replace", "insert", "add"),
		},
		[]string{"text"},
	)

	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "text")

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "text")
	mode := props["mode"].(map[string]interface{})
	assert.Equal(t, []string{"replace", "insert", "add"}, mode["enum"])
}
