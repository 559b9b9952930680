// Package httpshell serves the textwell tools over the MCP streamable HTTP
// transport using the MCP Go SDK.
package httpshell

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/worldnine/textwell-mcp/internal/common"
	"github.com/worldnine/textwell-mcp/internal/textwell"
	"github.com/worldnine/textwell-mcp/pkg/mcp"
)

const shutdownTimeout = 5 * time.Second

// Dispatcher is satisfied by *textwell.Dispatcher.
type Dispatcher interface {
	Tools() []*mcp.Tool
	Dispatch(ctx context.Context, req textwell.OperationRequest) (*mcp.ToolResult, error)
}

// Connector is satisfied by *gate.Gate.
type Connector interface {
	MarkConnected() bool
}

type Options struct {
	Name       string
	Version    string
	Dispatcher Dispatcher
	Connector  Connector
	Logger     *common.Logger
}

// NewServer builds an SDK server exposing the dispatcher's tools. The first
// client to complete the handshake opens the connector.
func NewServer(opts Options) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: opts.Name, Version: opts.Version}, &sdkmcp.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdkmcp.InitializedRequest) {
			if opts.Connector.MarkConnected() && opts.Logger != nil {
				opts.Logger.Info("Server started and ready")
			}
		},
	})

	for _, tool := range opts.Dispatcher.Tools() {
		server.AddTool(&sdkmcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, toolHandler(opts.Dispatcher, tool.Name))
	}
	return server
}

func toolHandler(d Dispatcher, name string) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, err := decodeArguments(raw)
		if err != nil {
			return errorResult(common.NewError(common.KindInvalidArguments, "arguments must be a JSON object", err)), nil
		}

		result, err := d.Dispatch(ctx, textwell.OperationRequest{Name: name, Arguments: args})
		if err != nil {
			return errorResult(common.AsError(err)), nil
		}
		return convertResult(result), nil
	}
}

func decodeArguments(raw json.RawMessage) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func convertResult(result *mcp.ToolResult) *sdkmcp.CallToolResult {
	out := &sdkmcp.CallToolResult{IsError: result.IsError}
	for _, block := range result.Content {
		out.Content = append(out.Content, &sdkmcp.TextContent{Text: block.Text})
	}
	return out
}

// errorResult reports a typed failure as an isError result whose text
// carries the kind.
func errorResult(err *common.Error) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}},
	}
}

// Handler returns the streamable HTTP handler for server.
func Handler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, nil)
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *common.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Listening for MCP over HTTP")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
