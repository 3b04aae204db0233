package tool

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

// langchainTool exposes a registry entry as a langchaingo tools.Tool.
type langchainTool struct {
	def      *Definition
	registry *Registry
}

var _ tools.Tool = (*langchainTool)(nil)

func (t *langchainTool) Name() string        { return t.def.Name }
func (t *langchainTool) Description() string { return t.def.Description }

// Call decodes input as JSON arguments and executes through the registry.
func (t *langchainTool) Call(ctx context.Context, input string) (string, error) {
	res, err := t.registry.Execute(ctx, t.def.Name, ParseArgs(input))
	if err != nil {
		return "", err
	}
	return FormatResult(res), nil
}

// AsLangchainTools adapts the named tools to langchaingo tools.
func (r *Registry) AsLangchainTools(names []string) ([]tools.Tool, error) {
	defs, err := r.Resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]tools.Tool, len(defs))
	for i, d := range defs {
		out[i] = &langchainTool{def: d, registry: r}
	}
	return out, nil
}

// LLMTools returns function declarations for model tool calling.
func (r *Registry) LLMTools(names []string) ([]llms.Tool, error) {
	defs, err := r.Resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]llms.Tool, len(defs))
	for i, d := range defs {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out, nil
}
