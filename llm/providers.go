package llm

import (
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

func newOpenAI(cfg domain.LLMConfig, opts Options) (llms.Model, error) {
	if opts.OpenAIAPIKey == "" {
		return nil, apperrors.LLMProvider(ProviderOpenAI, "OPENAI_API_KEY is not set", nil)
	}
	clientOpts := []openai.Option{
		openai.WithToken(opts.OpenAIAPIKey),
		openai.WithModel(cfg.Model),
	}
	if opts.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.OpenAIBaseURL))
	}
	return openai.New(clientOpts...)
}

func newAnthropic(cfg domain.LLMConfig, opts Options) (llms.Model, error) {
	if opts.AnthropicAPIKey == "" {
		return nil, apperrors.LLMProvider(ProviderAnthropic, "ANTHROPIC_API_KEY is not set", nil)
	}
	return anthropic.New(
		anthropic.WithToken(opts.AnthropicAPIKey),
		anthropic.WithModel(cfg.Model),
	)
}

func newOllama(cfg domain.LLMConfig, opts Options) (llms.Model, error) {
	clientOpts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if opts.OllamaBaseURL != "" {
		clientOpts = append(clientOpts, ollama.WithServerURL(opts.OllamaBaseURL))
	}
	return ollama.New(clientOpts...)
}
