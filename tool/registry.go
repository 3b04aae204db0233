package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/smallnest/agentscaffold/errors"
	"github.com/smallnest/agentscaffold/log"
)

// ExecuteHook observes every Execute call. err is nil on success.
type ExecuteHook func(name string, err error)

// Registry maps tool names to definitions. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Definition
	logger log.Logger
	hooks  []ExecuteHook
}

// NewRegistry creates an empty registry. A nil logger uses the package default.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Definition),
		logger: log.OrDefault(logger),
	}
}

// Register adds def, replacing any tool with the same name.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", def.Name)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.Parameters == nil {
		def.Parameters = ObjectSchema(nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		r.logger.Warn("tool %s already registered, replacing it", def.Name)
	}
	r.tools[def.Name] = def
	r.logger.Debug("registered tool %s", def.Name)
	return nil
}

// Unregister removes a tool and reports whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// Get returns the named tool.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns every tool sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defs := make([]*Definition, 0, len(r.tools))
	for _, d := range r.tools {
		defs = append(defs, d)
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Resolve returns the named tools in the requested order.
func (r *Registry) Resolve(names []string) ([]*Definition, error) {
	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		def, ok := r.Get(name)
		if !ok {
			return nil, apperrors.ToolNotFound(name)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// OnExecute registers a hook called after every execution.
func (r *Registry) OnExecute(hook ExecuteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Execute runs the named tool. Unknown names yield TOOL_NOT_FOUND; errors and
// panics raised by the tool are wrapped as TOOL_EXECUTION_FAILED.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result any, err error) {
	def, ok := r.Get(name)
	if !ok {
		err = apperrors.ToolNotFound(name)
		r.notify(name, err)
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = apperrors.ToolExecution(name, fmt.Errorf("panic: %v", p))
		}
		if err != nil {
			r.logger.Warn("tool %s failed: %v", name, err)
		}
		r.notify(name, err)
	}()

	result, err = def.Execute(ctx, args)
	if err != nil {
		return nil, apperrors.ToolExecution(name, err)
	}
	return result, nil
}

func (r *Registry) notify(name string, err error) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()
	for _, h := range hooks {
		h(name, err)
	}
}
