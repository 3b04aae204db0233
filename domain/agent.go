// Package domain holds the agent and session entities, their validation rules
// and the repository ports the storage layer implements.
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/smallnest/agentscaffold/errors"
)

// AgentType classifies what an agent is meant for.
type AgentType string

const (
	AgentTypeGeneral     AgentType = "general"
	AgentTypeSpecialized AgentType = "specialized"
	AgentTypeMultiAgent  AgentType = "multi-agent"
)

// GraphKind selects the state graph an agent runs on.
type GraphKind string

const (
	GraphReAct      GraphKind = "react"
	GraphRAG        GraphKind = "rag"
	GraphSupervisor GraphKind = "supervisor"
	GraphHITL       GraphKind = "hitl"
)

// AgentTypes lists the accepted agent types.
var AgentTypes = []AgentType{AgentTypeGeneral, AgentTypeSpecialized, AgentTypeMultiAgent}

// GraphKinds lists the accepted graph kinds.
var GraphKinds = []GraphKind{GraphReAct, GraphRAG, GraphSupervisor, GraphHITL}

// LLMConfig describes the model an agent talks to.
type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// Agent is a configured LLM-driven conversational entity.
type Agent struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Type          AgentType      `json:"type"`
	LLM           LLMConfig      `json:"llm"`
	SystemPrompt  string         `json:"systemPrompt,omitempty"`
	Tools         []string       `json:"tools"`
	Graph         GraphKind      `json:"graph"`
	Members       []string       `json:"members,omitempty"`
	MaxIterations int            `json:"maxIterations"`
	Active        bool           `json:"active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// NewAgent creates an active agent with a fresh ID. An empty graph defaults to react.
func NewAgent(name string, agentType AgentType, llm LLMConfig) *Agent {
	now := time.Now().UTC()
	return &Agent{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      agentType,
		LLM:       llm,
		Graph:     GraphReAct,
		Tools:     []string{},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the agent configuration and reports every failing field.
func (a *Agent) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(a.Name) == "" {
		fields["name"] = "name is required"
	}
	switch {
	case a.Type == "":
		fields["type"] = "type is required"
	case !validType(a.Type):
		fields["type"] = fmt.Sprintf("unknown agent type %q", a.Type)
	}
	if strings.TrimSpace(a.LLM.Model) == "" {
		fields["llm.model"] = "model is required"
	}
	if a.LLM.Temperature < 0 || a.LLM.Temperature > 2 {
		fields["llm.temperature"] = "temperature must be between 0 and 2"
	}
	if a.LLM.MaxTokens < 0 {
		fields["llm.maxTokens"] = "maxTokens must not be negative"
	}
	if a.MaxIterations < 0 {
		fields["maxIterations"] = "maxIterations must not be negative"
	}
	if a.Graph != "" && !validGraph(a.Graph) {
		fields["graph"] = fmt.Sprintf("unknown graph %q", a.Graph)
	}
	if a.Graph == GraphSupervisor && len(a.Members) == 0 {
		fields["members"] = "supervisor graph needs at least one member"
	}

	if len(fields) == 0 {
		return nil
	}
	return apperrors.InvalidAgentConfig("invalid agent configuration", fields)
}

func (a *Agent) Activate() {
	a.Active = true
	a.touch()
}

func (a *Agent) Deactivate() {
	a.Active = false
	a.touch()
}

// AgentPatch carries a partial update. Nil fields are left untouched.
type AgentPatch struct {
	Name          *string
	Description   *string
	Type          *AgentType
	LLM           *LLMConfig
	SystemPrompt  *string
	Tools         []string
	Graph         *GraphKind
	Members       []string
	MaxIterations *int
	Active        *bool
	Metadata      map[string]any
}

// Apply copies the set fields of p onto the agent.
func (a *Agent) Apply(p AgentPatch) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.LLM != nil {
		a.LLM = *p.LLM
	}
	if p.SystemPrompt != nil {
		a.SystemPrompt = *p.SystemPrompt
	}
	if p.Tools != nil {
		a.Tools = slices.Clone(p.Tools)
	}
	if p.Graph != nil {
		a.Graph = *p.Graph
	}
	if p.Members != nil {
		a.Members = slices.Clone(p.Members)
	}
	if p.MaxIterations != nil {
		a.MaxIterations = *p.MaxIterations
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	if p.Metadata != nil {
		a.Metadata = p.Metadata
	}
	a.touch()
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.Tools = slices.Clone(a.Tools)
	cp.Members = slices.Clone(a.Members)
	cp.Metadata = cloneMap(a.Metadata)
	return &cp
}

// GraphOrDefault returns the agent's graph kind, react when unset.
func (a *Agent) GraphOrDefault() GraphKind {
	if a.Graph == "" {
		return GraphReAct
	}
	return a.Graph
}

func (a *Agent) touch() {
	a.UpdatedAt = time.Now().UTC()
}

func validType(t AgentType) bool {
	for _, v := range AgentTypes {
		if v == t {
			return true
		}
	}
	return false
}

func validGraph(g GraphKind) bool {
	for _, v := range GraphKinds {
		if v == g {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
