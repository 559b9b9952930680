package textwell

import (
	"context"

	"github.com/worldnine/textwell-mcp/pkg/mcp"
)

// RegisterTools publishes the tool schemas on server and routes every
// tools/call, including unknown names, through Dispatch.
func (d *Dispatcher) RegisterTools(server *mcp.Server) {
	for _, tool := range d.Tools() {
		server.RegisterTool(tool)
	}
	server.SetFallback(func(ctx context.Context, name string, params map[string]interface{}) (*mcp.ToolResult, error) {
		return d.Dispatch(ctx, OperationRequest{Name: name, Arguments: params})
	})
}

// Tools returns the advertised tools with handlers bound to Dispatch.
func (d *Dispatcher) Tools() []*mcp.Tool {
	return []*mcp.Tool{d.writeTextTool(), d.setupTextwellTool()}
}

func (d *Dispatcher) handlerFor(name string) mcp.ToolHandler {
	return func(ctx context.Context, params map[string]interface{}) (*mcp.ToolResult, error) {
		return d.Dispatch(ctx, OperationRequest{Name: name, Arguments: params})
	}
}

func (d *Dispatcher) writeTextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolWriteText,
		Description: "Write text to Textwell",
		InputSchema: mcp.BuildInputSchema(
			map[string]interface{}{
				"text": mcp.StringProperty("Text to write"),
				"mode": mcp.EnumProperty("How to write - replace all, insert at cursor, or append to end", modeNames()...),
			},
			[]string{"text"},
		),
		Handler: d.handlerFor(ToolWriteText),
	}
}

func (d *Dispatcher) setupTextwellTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolSetupTextwell,
		Description: "Set up Textwell with required actions",
		InputSchema: mcp.BuildInputSchema(
			map[string]interface{}{
				"bridgeUrl": mcp.StringProperty("URL of the GitHub Pages bridge (defaults to " + d.bridgeURL + ")"),
			},
			[]string{},
		),
		Handler: d.handlerFor(ToolSetupTextwell),
	}
}
