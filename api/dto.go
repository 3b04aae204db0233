package api

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smallnest/agentscaffold/domain"
	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/rag"
	"github.com/smallnest/agentscaffold/workflow"
)

// LLMConfigDTO mirrors domain.LLMConfig.
type LLMConfigDTO struct {
	Provider    string   `json:"provider" validate:"omitempty,oneof=openai anthropic ollama mock"`
	Model       string   `json:"model" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"maxTokens" validate:"gte=0"`
}

func (d LLMConfigDTO) toDomain(defaultTemperature float64) domain.LLMConfig {
	temp := defaultTemperature
	if d.Temperature != nil {
		temp = *d.Temperature
	}
	return domain.LLMConfig{
		Provider:    strings.ToLower(d.Provider),
		Model:       d.Model,
		Temperature: temp,
		MaxTokens:   d.MaxTokens,
	}
}

// CreateAgentRequest is the body of POST /agents.
type CreateAgentRequest struct {
	Name          string         `json:"name" validate:"required,max=100"`
	Description   string         `json:"description" validate:"max=500"`
	Type          string         `json:"type" validate:"required,oneof=general specialized multi-agent"`
	LLM           LLMConfigDTO   `json:"llm" validate:"required"`
	SystemPrompt  string         `json:"systemPrompt"`
	Tools         []string       `json:"tools" validate:"omitempty,dive,required"`
	Graph         string         `json:"graph" validate:"omitempty,oneof=react rag supervisor hitl"`
	Members       []string       `json:"members" validate:"omitempty,dive,required"`
	MaxIterations int            `json:"maxIterations" validate:"gte=0,lte=100"`
	Metadata      map[string]any `json:"metadata"`
}

func (req *CreateAgentRequest) toDomain(defaults domain.LLMConfig) *domain.Agent {
	llm := req.LLM.toDomain(defaults.Temperature)
	if llm.Provider == "" {
		llm.Provider = defaults.Provider
	}
	if llm.MaxTokens == 0 {
		llm.MaxTokens = defaults.MaxTokens
	}

	agent := domain.NewAgent(req.Name, domain.AgentType(req.Type), llm)
	agent.Description = req.Description
	agent.SystemPrompt = req.SystemPrompt
	if req.Tools != nil {
		agent.Tools = req.Tools
	}
	if req.Graph != "" {
		agent.Graph = domain.GraphKind(req.Graph)
	}
	agent.Members = req.Members
	agent.MaxIterations = req.MaxIterations
	agent.Metadata = req.Metadata
	return agent
}

// UpdateAgentRequest is the body of PATCH /agents/{id}. Absent fields are
// left unchanged.
type UpdateAgentRequest struct {
	Name          *string        `json:"name" validate:"omitempty,min=1,max=100"`
	Description   *string        `json:"description" validate:"omitempty,max=500"`
	Type          *string        `json:"type" validate:"omitempty,oneof=general specialized multi-agent"`
	LLM           *LLMConfigDTO  `json:"llm"`
	SystemPrompt  *string        `json:"systemPrompt"`
	Tools         []string       `json:"tools" validate:"omitempty,dive,required"`
	Graph         *string        `json:"graph" validate:"omitempty,oneof=react rag supervisor hitl"`
	Members       []string       `json:"members" validate:"omitempty,dive,required"`
	MaxIterations *int           `json:"maxIterations" validate:"omitempty,gte=0,lte=100"`
	Active        *bool          `json:"isActive"`
	Metadata      map[string]any `json:"metadata"`
}

func (req *UpdateAgentRequest) toPatch(current domain.LLMConfig) domain.AgentPatch {
	p := domain.AgentPatch{
		Name:          req.Name,
		Description:   req.Description,
		SystemPrompt:  req.SystemPrompt,
		Tools:         req.Tools,
		Members:       req.Members,
		MaxIterations: req.MaxIterations,
		Active:        req.Active,
		Metadata:      req.Metadata,
	}
	if req.Type != nil {
		t := domain.AgentType(*req.Type)
		p.Type = &t
	}
	if req.Graph != nil {
		g := domain.GraphKind(*req.Graph)
		p.Graph = &g
	}
	if req.LLM != nil {
		llm := req.LLM.toDomain(current.Temperature)
		if llm.Provider == "" {
			llm.Provider = current.Provider
		}
		if llm.MaxTokens == 0 {
			llm.MaxTokens = current.MaxTokens
		}
		p.LLM = &llm
	}
	return p
}

// InvokeRequest is the body of POST /agents/{id}/invoke.
type InvokeRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId" validate:"omitempty,uuid"`
	Stream    bool   `json:"stream"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	AgentID    string         `json:"agentId" validate:"required"`
	TTLSeconds int            `json:"ttlSeconds" validate:"gte=0"`
	Metadata   map[string]any `json:"metadata"`
}

func (req *CreateSessionRequest) ttl() time.Duration {
	return time.Duration(req.TTLSeconds) * time.Second
}

// ReviewRequest is the body of POST /sessions/{id}/review.
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Comment  string `json:"comment" validate:"max=1000"`
}

func (req *ReviewRequest) decision() workflow.Decision {
	return workflow.Decision(req.Decision)
}

// ExecuteToolRequest is the body of POST /tools/{name}/execute.
type ExecuteToolRequest struct {
	Args map[string]any `json:"args"`
}

// IngestRequest is the body of POST /knowledge.
type IngestRequest struct {
	Format    string        `json:"format" validate:"omitempty,oneof=text markdown md html"`
	Documents []DocumentDTO `json:"documents" validate:"required,min=1,dive"`
}

// DocumentDTO is one document to ingest.
type DocumentDTO struct {
	ID       string         `json:"id"`
	Content  string         `json:"content" validate:"required"`
	Metadata map[string]any `json:"metadata"`
}

func (req *IngestRequest) documents() []rag.Document {
	docs := make([]rag.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = rag.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
	}
	return docs
}

// ToolResponse describes a registered tool.
type ToolResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// PageResponse wraps a page of results.
type PageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Take  int `json:"take"`
}

func pageResponse[T any](p domain.PageResult[T]) PageResponse[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Items: items, Total: p.Total, Skip: p.Skip, Take: p.Take}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate runs struct validation and reports failures as VALIDATION_FAILED
// with one message per field.
func (s *Server) validate(dst any) error {
	err := s.validator.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.InvalidRequest(err.Error(), err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = fieldMessage(fe)
	}
	return apperrors.Validation(fields)
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "min":
		return fe.Field() + " must have at least " + fe.Param() + " item(s) or characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "uuid":
		return fe.Field() + " must be a UUID"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
