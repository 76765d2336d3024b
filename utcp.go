package agent

import (
	"context"
	"fmt"
	"strings"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/cli"
	"github.com/universal-tool-calling-protocol/go-utcp/src/repository"
	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"
	"github.com/universal-tool-calling-protocol/go-utcp/src/transports"
)

// toolHostTransport hosts in-process tool sets behind the CLI provider type
// so they can be resolved and called through a UTCP client without a remote
// transport.
type toolHostTransport struct {
	inner repository.ClientTransport
	tools map[string][]utcptools.Tool
}

func (t *toolHostTransport) RegisterToolProvider(ctx context.Context, prov base.Provider) ([]utcptools.Tool, error) {
	p, ok := prov.(*cli.CliProvider)
	if !ok {
		if t.inner != nil {
			return t.inner.RegisterToolProvider(ctx, prov)
		}
		return nil, fmt.Errorf("unsupported provider type %T", prov)
	}
	if t.tools == nil {
		t.tools = make(map[string][]utcptools.Tool)
	}
	list, ok := t.tools[p.Name]
	if !ok {
		if t.inner != nil {
			return t.inner.RegisterToolProvider(ctx, prov)
		}
		return nil, fmt.Errorf("hosted tools not found for provider %s", p.Name)
	}
	return list, nil
}

func (t *toolHostTransport) DeregisterToolProvider(ctx context.Context, prov base.Provider) error {
	if p, ok := prov.(*cli.CliProvider); ok {
		if _, ok := t.tools[p.Name]; ok {
			delete(t.tools, p.Name)
			return nil
		}
	}
	if t.inner != nil {
		return t.inner.DeregisterToolProvider(ctx, prov)
	}
	return nil
}

func (t *toolHostTransport) CallTool(ctx context.Context, toolName string, args map[string]any, prov base.Provider, _ *string) (any, error) {
	if p, ok := prov.(*cli.CliProvider); ok {
		if list, ok := t.tools[p.Name]; ok {
			for _, tool := range list {
				if tool.Name == toolName || strings.HasSuffix(tool.Name, "."+toolName) {
					if tool.Handler == nil {
						return nil, fmt.Errorf("tool %s has no handler", toolName)
					}
					return tool.Handler(ctx, args)
				}
			}
		}
		if t.inner != nil {
			return t.inner.CallTool(ctx, toolName, args, prov, nil)
		}
		return nil, fmt.Errorf("tool %s not found for provider %s", toolName, p.Name)
	}
	if t.inner != nil {
		return t.inner.CallTool(ctx, toolName, args, prov, nil)
	}
	return nil, fmt.Errorf("unsupported provider type %T", prov)
}

func (t *toolHostTransport) CallToolStream(ctx context.Context, toolName string, args map[string]any, prov base.Provider) (transports.StreamResult, error) {
	if p, ok := prov.(*cli.CliProvider); ok {
		if _, ok := t.tools[p.Name]; ok {
			return nil, fmt.Errorf("streaming not supported for tool %s (provider %s)", toolName, p.Name)
		}
	}
	if t.inner != nil {
		return t.inner.CallToolStream(ctx, toolName, args, prov)
	}
	return nil, fmt.Errorf("unsupported provider type %T", prov)
}

// AsUTCPTool converts a Tool into a UTCP tool description with an in-process
// handler. The qualified name is "<provider>.<tool>".
func AsUTCPTool(providerName string, tool Tool) utcptools.Tool {
	spec := tool.Spec()
	inputs := utcptools.ToolInputOutputSchema{Type: "object"}
	if props, ok := spec.InputSchema["properties"].(map[string]any); ok {
		inputs.Properties = props
	}
	if req, ok := spec.InputSchema["required"].([]string); ok {
		inputs.Required = req
	}

	return utcptools.Tool{
		Name:        fmt.Sprintf("%s.%s", providerName, spec.Name),
		Description: spec.Description,
		Provider: &base.BaseProvider{
			Name:         providerName,
			ProviderType: base.ProviderCLI, // in-process handler, no remote transport
		},
		Inputs: inputs,
		Outputs: utcptools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"content": map[string]any{"type": "string"},
			},
		},
		Handler: utcptools.ToolHandler(func(ctx context.Context, inputs map[string]interface{}) (any, error) {
			execCtx := ctx
			if execCtx == nil {
				execCtx = context.Background()
			}
			sessionID, _ := inputs["session_id"].(string)
			resp, err := tool.Invoke(execCtx, ToolRequest{SessionID: sessionID, Arguments: inputs})
			if err != nil {
				return nil, err
			}
			return resp.Content, nil
		}),
	}
}

// RegisterToolsAsUTCPProvider publishes a tool set on the provided UTCP
// client under a single provider name. It installs a lightweight in-process
// transport under the CLI provider type to route CallTool invocations
// directly to the tools' Invoke methods.
func RegisterToolsAsUTCPProvider(ctx context.Context, client utcp.UtcpClientInterface, providerName string, toolset []Tool) error {
	if client == nil {
		return fmt.Errorf("utcp client is nil")
	}
	providerName = strings.TrimSpace(providerName)
	if providerName == "" {
		return fmt.Errorf("provider name is empty")
	}

	hosted := make([]utcptools.Tool, 0, len(toolset))
	for _, tool := range toolset {
		if tool == nil {
			continue
		}
		hosted = append(hosted, AsUTCPTool(providerName, tool))
	}

	tp := &cli.CliProvider{
		BaseProvider: base.BaseProvider{
			Name:         providerName,
			ProviderType: base.ProviderCLI,
		},
	}

	transportsMap := client.GetTransports()
	if transportsMap == nil {
		return fmt.Errorf("utcp client transports map is nil")
	}

	existing := transportsMap[string(base.ProviderCLI)]
	var shim *toolHostTransport
	if maybe, ok := existing.(*toolHostTransport); ok {
		shim = maybe
	} else {
		shim = &toolHostTransport{inner: existing}
		transportsMap[string(base.ProviderCLI)] = shim
	}
	if shim.tools == nil {
		shim.tools = make(map[string][]utcptools.Tool)
	}
	shim.tools[tp.Name] = hosted

	_, err := client.RegisterToolProvider(ctx, tp)
	return err
}

// ResolveToolsViaUTCP publishes a tool set on the client and returns
// client-side wrappers for it, so an agent invokes its own tools through
// the UTCP call path instead of directly.
func ResolveToolsViaUTCP(ctx context.Context, client utcp.UtcpClientInterface, providerName string, toolset []Tool) ([]Tool, error) {
	if err := RegisterToolsAsUTCPProvider(ctx, client, providerName, toolset); err != nil {
		return nil, err
	}
	resolved := make([]Tool, 0, len(toolset))
	for _, tool := range toolset {
		if tool == nil {
			continue
		}
		spec := tool.Spec()
		qualified := fmt.Sprintf("%s.%s", providerName, spec.Name)
		resolved = append(resolved, NewUTCPTool(client, qualified, spec.Description, spec.InputSchema))
	}
	return resolved, nil
}

// UTCPTool adapts a UTCP-served tool back into the Tool interface so an
// agent can resolve its tool set through a UTCP client.
type UTCPTool struct {
	client    utcp.UtcpClientInterface
	qualified string
	spec      ToolSpec
}

// NewUTCPTool wraps the UTCP tool named "<provider>.<name>" on the client.
func NewUTCPTool(client utcp.UtcpClientInterface, qualifiedName, description string, inputSchema map[string]any) *UTCPTool {
	name := qualifiedName
	if idx := strings.LastIndex(qualifiedName, "."); idx >= 0 {
		name = qualifiedName[idx+1:]
	}
	return &UTCPTool{
		client:    client,
		qualified: qualifiedName,
		spec: ToolSpec{
			Name:        name,
			Description: description,
			InputSchema: inputSchema,
		},
	}
}

func (t *UTCPTool) Spec() ToolSpec { return t.spec }

func (t *UTCPTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if req.SessionID != "" {
		args["session_id"] = req.SessionID
	}
	out, err := t.client.CallTool(ctx, t.qualified, args)
	if err != nil {
		return ToolResponse{}, err
	}
	return ToolResponse{Content: fmt.Sprint(out)}, nil
}

var _ Tool = (*UTCPTool)(nil)
