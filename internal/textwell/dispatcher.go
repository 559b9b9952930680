// Package textwell turns MCP tool calls into Textwell URL scheme
// invocations.
//
// A call flows through Dispatch in a fixed order: the connection gate is
// checked, the tool name and arguments are resolved to a textwell:/// URL,
// the URL is handed to the invoker with the configured deadline, and the
// outcome is translated into a tool result. Every failure leaving Dispatch
// is a *common.Error.
package textwell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/worldnine/textwell-mcp/config"
	"github.com/worldnine/textwell-mcp/internal/common"
	"github.com/worldnine/textwell-mcp/internal/invoker"
	"github.com/worldnine/textwell-mcp/pkg/mcp"
)

const (
	ToolWriteText     = "write-text"
	ToolSetupTextwell = "setup-textwell"
	// ToolSetupBridge is accepted as an alias of setup-textwell.
	ToolSetupBridge = "setup-bridge"

	tracerName = "github.com/worldnine/textwell-mcp/internal/textwell"
)

// OperationRequest is one inbound tool call.
type OperationRequest struct {
	Name      string
	Arguments map[string]interface{}
}

// Readiness is satisfied by *gate.Gate.
type Readiness interface {
	EnsureReady() error
}

// URLInvoker is satisfied by *invoker.Invoker.
type URLInvoker interface {
	Invoke(ctx context.Context, url string, deadline time.Duration) invoker.Outcome
}

type Options struct {
	Ready   Readiness
	Mapping *ModeMapping
	Invoker URLInvoker
	Sink    common.Sink
	Timeout time.Duration
	// MaxURLBytes bounds the resolved URL; zero disables the check.
	MaxURLBytes int
	BridgeURL   string
	Tracer      trace.Tracer
}

type Dispatcher struct {
	ready       Readiness
	mapping     *ModeMapping
	invoker     URLInvoker
	sink        common.Sink
	timeout     time.Duration
	maxURLBytes int
	bridgeURL   string
	tracer      trace.Tracer
}

func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Ready == nil {
		return nil, errors.New("textwell: readiness check is required")
	}
	if opts.Mapping == nil {
		return nil, errors.New("textwell: mode mapping is required")
	}
	if opts.Invoker == nil {
		return nil, errors.New("textwell: invoker is required")
	}
	if opts.Sink == nil {
		opts.Sink = common.Discard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = invoker.DefaultDeadline
	}
	if opts.BridgeURL == "" {
		opts.BridgeURL = config.DefaultBridgeURL
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Dispatcher{
		ready:       opts.Ready,
		mapping:     opts.Mapping,
		invoker:     opts.Invoker,
		sink:        opts.Sink,
		timeout:     opts.Timeout,
		maxURLBytes: opts.MaxURLBytes,
		bridgeURL:   opts.BridgeURL,
		tracer:      opts.Tracer,
	}, nil
}

// Dispatch handles one tool call. The returned error, when non-nil, is
// always a *common.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, req OperationRequest) (result *mcp.ToolResult, err error) {
	ctx, span := d.tracer.Start(ctx, "textwell.dispatch",
		trace.WithAttributes(attribute.String("textwell.tool", req.Name)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = common.Errorf(common.KindInternalError, "tool %s panicked: %v", req.Name, r)
		}
		if err != nil {
			typed := common.AsError(err)
			err = typed
			d.sink.Log(common.LogLevelError, "Tool execution failed: "+typed.Message)
			span.SetAttributes(attribute.String("textwell.error_kind", string(typed.Kind)))
			span.RecordError(typed)
			span.SetStatus(codes.Error, typed.Message)
		}
	}()

	if err := d.ready.EnsureReady(); err != nil {
		return nil, err
	}

	d.sink.Log(common.LogLevelInfo, "Executing tool: "+req.Name)

	args := req.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	switch req.Name {
	case ToolWriteText:
		return d.writeText(ctx, span, args)
	case ToolSetupTextwell, ToolSetupBridge:
		return d.setupTextwell(ctx, span, args)
	default:
		return nil, common.Errorf(common.KindMethodNotFound, "Unknown tool: %s", req.Name)
	}
}

func (d *Dispatcher) writeText(ctx context.Context, span trace.Span, args map[string]interface{}) (*mcp.ToolResult, error) {
	text, err := mcp.GetStringParam(args, "text", true)
	if err != nil {
		return nil, common.NewError(common.KindInvalidArguments, err.Error(), err)
	}
	rawMode, err := mcp.GetStringParam(args, "mode", false)
	if err != nil {
		return nil, common.NewError(common.KindInvalidArguments, err.Error(), err)
	}
	mode, err := ParseMode(rawMode)
	if err != nil {
		return nil, common.NewError(common.KindInvalidArguments, err.Error(), err)
	}
	span.SetAttributes(
		attribute.String("textwell.mode", mode.String()),
		attribute.Int("textwell.text_bytes", len(text)),
	)

	d.sink.Log(common.LogLevelInfo, "Writing text with mode: "+mode.String())

	if err := d.open(ctx, span, WriteURL(d.mapping, mode, text)); err != nil {
		return nil, err
	}
	return mcp.TextResult(fmt.Sprintf("Text has been %s successfully", mode.PastTense())), nil
}

func (d *Dispatcher) setupTextwell(ctx context.Context, span trace.Span, args map[string]interface{}) (*mcp.ToolResult, error) {
	rawBridge, err := mcp.GetStringParamDefault(args, "bridgeUrl", d.bridgeURL)
	if err != nil {
		return nil, common.NewError(common.KindInvalidArguments, err.Error(), err)
	}
	bridge, err := common.ValidateBridgeURL(rawBridge)
	if err != nil {
		return nil, common.NewError(common.KindInvalidArguments, err.Error(), err)
	}
	span.SetAttributes(attribute.String("textwell.bridge_url", bridge))

	d.sink.Log(common.LogLevelInfo, "Setting up Textwell with bridge URL: "+bridge)

	if err := d.open(ctx, span, ImportActionURL(d.mapping, BridgeAction(bridge))); err != nil {
		return nil, err
	}
	return mcp.TextResult("Textwell setup completed successfully"), nil
}

// open checks the URL size and runs a single invocation.
func (d *Dispatcher) open(ctx context.Context, span trace.Span, url string) error {
	span.SetAttributes(attribute.Int("textwell.url_bytes", len(url)))

	if err := common.ValidateURLLength(url, d.maxURLBytes); err != nil {
		return common.NewError(common.KindArgumentTooLarge, err.Error(), err)
	}

	outcome := d.invoker.Invoke(ctx, url, d.timeout)
	span.SetAttributes(attribute.String("textwell.outcome", outcome.Kind.String()))

	if err := outcome.Err(); err != nil {
		return common.NewError(common.KindOperationFailed, err.Error(), err)
	}
	return nil
}
