// Package llm creates and caches langchaingo chat models for agent
// configurations.
//
// One client is kept per (provider, model, temperature, max tokens) tuple. The
// cached client binds temperature and max tokens as default call options, so
// graphs can call GenerateContent without repeating them.
package llm

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
)

// Options carries provider credentials and endpoints.
type Options struct {
	// DefaultProvider is used when an agent leaves the provider empty.
	DefaultProvider string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaBaseURL   string
	Logger          log.Logger
}

// ProviderFactory builds a model for cfg.
type ProviderFactory func(cfg domain.LLMConfig, opts Options) (llms.Model, error)

// Service hands out cached models. It is safe for concurrent use.
type Service struct {
	opts      Options
	logger    log.Logger
	mu        sync.RWMutex
	cache     map[string]llms.Model
	factories map[string]ProviderFactory
}

// NewService creates a service with the openai, anthropic, ollama and mock
// providers registered.
func NewService(opts Options) *Service {
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = ProviderMock
	}
	s := &Service{
		opts:      opts,
		logger:    log.OrDefault(opts.Logger),
		cache:     make(map[string]llms.Model),
		factories: make(map[string]ProviderFactory),
	}
	s.factories[ProviderOpenAI] = newOpenAI
	s.factories[ProviderAnthropic] = newAnthropic
	s.factories[ProviderOllama] = newOllama
	s.factories[ProviderMock] = func(domain.LLMConfig, Options) (llms.Model, error) {
		return NewMockModel(), nil
	}
	return s
}

// RegisterProvider adds or replaces a provider factory.
func (s *Service) RegisterProvider(name string, factory ProviderFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[strings.ToLower(name)] = factory
}

// Providers returns the registered provider names, sorted.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.factories))
	for n := range s.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CacheKey returns the cache key for cfg: provider:model:temperature:maxTokens.
func CacheKey(cfg domain.LLMConfig) string {
	return fmt.Sprintf("%s:%s:%s:%d",
		cfg.Provider, cfg.Model, strconv.FormatFloat(cfg.Temperature, 'f', -1, 64), cfg.MaxTokens)
}

// Model returns the cached model for cfg, creating it on first use.
func (s *Service) Model(cfg domain.LLMConfig) (llms.Model, error) {
	cfg.Provider = strings.ToLower(cfg.Provider)
	if cfg.Provider == "" {
		cfg.Provider = s.opts.DefaultProvider
	}
	key := CacheKey(cfg)

	s.mu.RLock()
	m, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.cache[key]; ok {
		return m, nil
	}

	factory, ok := s.factories[cfg.Provider]
	if !ok {
		return nil, apperrors.LLMProvider(cfg.Provider, fmt.Sprintf("unsupported LLM provider %q", cfg.Provider), nil)
	}
	base, err := factory(cfg, s.opts)
	if err != nil {
		if _, isApp := apperrors.As(err); isApp {
			return nil, err
		}
		return nil, apperrors.LLMProvider(cfg.Provider, "failed to create LLM client", err)
	}

	m = bind(base, cfg)
	s.cache[key] = m
	s.logger.Debug("created LLM client %s", key)
	return m, nil
}

// CacheSize returns the number of cached clients.
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Reset drops every cached client.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]llms.Model)
}

// boundModel prepends default call options to every request; options given by
// the caller win because they are applied last.
type boundModel struct {
	llms.Model
	defaults []llms.CallOption
}

var _ llms.Model = (*boundModel)(nil)

func bind(m llms.Model, cfg domain.LLMConfig) llms.Model {
	defaults := []llms.CallOption{llms.WithTemperature(cfg.Temperature)}
	if cfg.MaxTokens > 0 {
		defaults = append(defaults, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Model != "" {
		defaults = append(defaults, llms.WithModel(cfg.Model))
	}
	return &boundModel{Model: m, defaults: defaults}
}

func (b *boundModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return b.Model.GenerateContent(ctx, messages, append(slices.Clone(b.defaults), options...)...)
}

func (b *boundModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, b, prompt, options...)
}
