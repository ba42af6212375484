package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftboard/draftboard/internal/storage"
)

func noopTool(name string, category Category) *Tool {
	return &Tool{
		Name:       name,
		Category:   category,
		Parameters: map[string]interface{}{"type": "object"},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"tool": name}, nil
		},
	}
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(noopTool("charlie", CategoryRead))
	r.Register(noopTool("alpha", CategoryWrite))
	r.Register(noopTool("bravo", CategoryAction))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "charlie", list[0].Name)
	assert.Equal(t, "alpha", list[1].Name)
	assert.Equal(t, "bravo", list[2].Name)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(noopTool("dup", CategoryRead))
	assert.Panics(t, func() { r.Register(noopTool("dup", CategoryRead)) })
}

func TestOpenAIToolsProjection(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name:        "get_thing",
		Description: "Fetch a thing.",
		Category:    CategoryRead,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"id": map[string]interface{}{"type": "string"}},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
	})

	defs := r.OpenAITools()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "get_thing", defs[0].Function.Name)
	assert.Equal(t, "Fetch a thing.", defs[0].Function.Description)
	assert.Contains(t, defs[0].Function.Parameters, "properties")
}

func decodePayload(t *testing.T, payload string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &m))
	return m
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	out := decodePayload(t, r.Execute(context.Background(), "missing", nil))

	assert.Equal(t, false, out["success"])
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION", errObj["code"])
}

func TestExecuteWrapsHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"validation", fmt.Errorf("bad input: %w", storage.ErrValidation), "VALIDATION"},
		{"not found", fmt.Errorf("no row: %w", storage.ErrNotFound), "NOT_FOUND"},
		{"conflict", fmt.Errorf("dup: %w", storage.ErrConflict), "CONFLICT"},
		{"internal", fmt.Errorf("disk on fire"), "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(&Tool{
				Name:       "failing",
				Category:   CategoryRead,
				Parameters: map[string]interface{}{"type": "object"},
				Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
					return nil, tt.err
				},
			})

			out := decodePayload(t, r.Execute(context.Background(), "failing", nil))
			assert.Equal(t, false, out["success"])
			errObj := out["error"].(map[string]interface{})
			assert.Equal(t, tt.code, errObj["code"])
			assert.NotEmpty(t, errObj["message"])
		})
	}
}

func TestExecuteSerializesResult(t *testing.T) {
	r := NewRegistry()
	r.Register(noopTool("echo", CategoryRead))

	out := decodePayload(t, r.Execute(context.Background(), "echo", map[string]interface{}{}))
	assert.Equal(t, "echo", out["tool"])
}
