// Package tools is the agent-facing catalog of named operations.
//
// The registry is configuration, not scattered handlers: each tool is a row
// with a name, a JSON-schema parameter description, a category, and a
// handler. Read tools hit the store directly; write tools only synthesize
// draft actions for the caller to funnel through the draft engine; action
// tools trigger operations that cannot be expressed as drafts (apply).
//
// Isolating the agent behind "write = proposal, not commit" is what makes an
// LLM-driven caller safe: hallucinations materialize as inspectable pending
// drafts, never as direct data loss.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/telemetry"
)

// Category classifies how a tool interacts with persistent state.
type Category string

// Tool categories
const (
	CategoryRead   Category = "read"
	CategoryWrite  Category = "write"
	CategoryAction Category = "action"
)

// Handler executes a tool call. Arguments arrive as a decoded JSON object
// with every field treated as optional and loosely typed.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is one registry row.
type Tool struct {
	Name        string
	Description string
	Category    Category
	Parameters  map[string]interface{} // JSON Schema subset
	Handler     Handler
}

// Registry holds the tool table. Immutable after construction; safe for
// concurrent dispatch.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Panics if the name is already taken.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("tool %q already registered", t.Name))
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// OpenAIFunction is the function half of an OpenAI tool descriptor.
type OpenAIFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// OpenAITool is one descriptor in the shape expected by function-calling
// chat-completion APIs.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAITools projects the registry to the upstream function-calling shape.
func (r *Registry) OpenAITools() []OpenAITool {
	tools := r.List()
	out := make([]OpenAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// errorPayload is the structured failure shape handed back to the agent so
// retries see a resumable, machine-readable error instead of an exception.
type errorPayload struct {
	Success bool         `json:"success"`
	Error   errorDetails `json:"error"`
}

type errorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Execute dispatches a tool call by name and returns the handler's result
// serialized as a JSON string. Handler failures never propagate as errors;
// they are wrapped into a {success:false, error:{...}} payload.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	tool := r.Get(name)
	if tool == nil {
		telemetry.CountToolCall(ctx, name, false)
		return marshalPayload(errorPayload{
			Error: errorDetails{Code: "VALIDATION", Message: fmt.Sprintf("unknown tool %q", name)},
		})
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		telemetry.CountToolCall(ctx, name, false)
		return marshalPayload(errorPayload{
			Error: errorDetails{Code: errorCode(err), Message: err.Error()},
		})
	}

	telemetry.CountToolCall(ctx, name, true)
	return marshalPayload(result)
}

// ResultPayload serializes a successful handler result the same way Execute
// does, for callers that dispatch handlers themselves.
func ResultPayload(v interface{}) string {
	return marshalPayload(v)
}

// ErrorPayload serializes err into the structured failure shape.
func ErrorPayload(err error) string {
	return marshalPayload(errorPayload{
		Error: errorDetails{Code: errorCode(err), Message: err.Error()},
	})
}

func marshalPayload(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"error":{"code":"INTERNAL","message":"failed to serialize tool result"}}`
	}
	return string(b)
}

// errorCode maps domain errors to the wire-level error taxonomy.
func errorCode(err error) string {
	switch {
	case errors.Is(err, storage.ErrValidation):
		return "VALIDATION"
	case errors.Is(err, storage.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, storage.ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
