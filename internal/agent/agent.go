package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/draftboard/draftboard/internal/draft"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/telemetry"
	"github.com/draftboard/draftboard/internal/tools"
	"github.com/draftboard/draftboard/internal/types"
)

// maxIterations caps the tool-call loop. A well-behaved model answers in a
// handful of rounds; the cap keeps a looping one from burning tokens forever.
const maxIterations = 8

const systemPrompt = `You are a project planning assistant for a task management system.
You can read projects and tasks directly. You can NEVER change data directly:
write tools only create pending drafts that a human reviews and applies.
When you create a draft, tell the user its id and summarize the proposed
changes and any warnings. Use apply_changes only when the user explicitly
asks you to apply a draft.`

// Agent runs the tool-call loop for one conversation turn.
type Agent struct {
	client   *Client
	registry *tools.Registry
	drafts   *draft.Engine
}

// New creates an agent over the given client, registry, and draft engine.
func New(client *Client, registry *tools.Registry, drafts *draft.Engine) *Agent {
	return &Agent{client: client, registry: registry, drafts: drafts}
}

// Request is one conversation turn from the caller.
type Request struct {
	History       []Message `json:"history"`
	Message       string    `json:"message"`
	SystemContext string    `json:"systemContext,omitempty"`
}

// Result is the assistant's reply plus any drafts created along the way.
type Result struct {
	Reply    string   `json:"reply"`
	DraftIDs []string `json:"draftIds"`
}

// Run sends the turn to the model and dispatches tool calls until the model
// produces a plain-text answer or the iteration cap is hit.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	if !a.client.Configured() {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not configured", storage.ErrValidation)
	}

	system := systemPrompt
	if req.SystemContext != "" {
		system += "\n\n" + req.SystemContext
	}

	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Message})

	toolDefs := a.registry.OpenAITools()
	result := &Result{DraftIDs: []string{}}

	for i := 0; i < maxIterations; i++ {
		msg, err := a.client.ChatCompletion(ctx, messages, toolDefs)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)

		if len(msg.ToolCalls) == 0 {
			result.Reply = msg.Content
			return result, nil
		}

		for _, call := range msg.ToolCalls {
			payload := a.dispatch(ctx, call, req.Message, result)
			messages = append(messages, Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    payload,
			})
		}
	}

	result.Reply = "I could not finish within the allotted tool-call budget. The drafts created so far are listed; please review them."
	return result, nil
}

// dispatch routes one tool call. Write tools are intercepted so their
// proposed actions land in the draft engine; everything else goes through the
// registry directly.
func (a *Agent) dispatch(ctx context.Context, call ToolCall, userMessage string, result *Result) string {
	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return tools.ErrorPayload(fmt.Errorf("%w: malformed tool arguments: %s", storage.ErrValidation, err))
		}
	}

	tool := a.registry.Get(call.Function.Name)
	if tool == nil || tool.Category != tools.CategoryWrite {
		return a.registry.Execute(ctx, call.Function.Name, args)
	}

	planned, err := tool.Handler(ctx, args)
	telemetry.CountToolCall(ctx, tool.Name, err == nil)
	if err != nil {
		return tools.ErrorPayload(err)
	}
	actions, ok := planned.(tools.PlannedActions)
	if !ok {
		return tools.ResultPayload(planned)
	}

	d, warnings, err := a.drafts.Submit(ctx, draft.SubmitRequest{
		ProjectID: projectScope(actions.Actions),
		CreatedBy: types.ActorAgent,
		Reason:    truncate(userMessage, 200),
		Actions:   actions.Actions,
	})
	if err != nil {
		return tools.ErrorPayload(err)
	}

	result.DraftIDs = append(result.DraftIDs, d.ID)
	return tools.ResultPayload(map[string]interface{}{
		"draftId":  d.ID,
		"status":   d.Status,
		"warnings": warnings,
		"actions":  d.Actions,
	})
}

// projectScope extracts a project id to scope the draft under, when the batch
// makes one evident.
func projectScope(actions []types.DraftAction) string {
	for _, action := range actions {
		if action.EntityType == types.EntityProject && action.EntityID != "" {
			return action.EntityID
		}
		if pid, ok := action.After["projectId"].(string); ok && pid != "" {
			return pid
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
