package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Patch application for draft actions and agent tool arguments.
//
// The agent is an open-ended, untyped source: every wire field may arrive as
// a string, a float64 (JSON number), or be missing entirely. These helpers
// coerce to typed fields and silently drop unknown keys so a noisy plan still
// lands as an inspectable draft instead of a hard failure.

// ApplyProjectPatch merges the provided keys of patch into p.
// Unknown keys are ignored.
func ApplyProjectPatch(p *Project, patch map[string]interface{}) {
	for key, raw := range patch {
		switch key {
		case "name":
			if v, ok := asString(raw); ok {
				p.Name = v
			}
		case "description":
			if v, ok := asString(raw); ok {
				p.Description = v
			}
		case "icon":
			if v, ok := asString(raw); ok {
				p.Icon = v
			}
		case "createdAt":
			if v, ok := asMillis(raw); ok {
				p.CreatedAt = v
			}
		}
	}
}

// ApplyTaskPatch merges the provided keys of patch into t.
// Enum values are normalized to uppercase; unknown keys are ignored.
func ApplyTaskPatch(t *Task, patch map[string]interface{}) {
	for key, raw := range patch {
		switch key {
		case "projectId":
			if v, ok := asString(raw); ok {
				t.ProjectID = v
			}
		case "title":
			if v, ok := asString(raw); ok {
				t.Title = v
			}
		case "description":
			if v, ok := asString(raw); ok {
				t.Description = v
			}
		case "status":
			if v, ok := asString(raw); ok {
				t.Status = Status(strings.ToUpper(v))
			}
		case "priority":
			if v, ok := asString(raw); ok {
				t.Priority = Priority(strings.ToUpper(v))
			}
		case "createdAt":
			if v, ok := asMillis(raw); ok {
				t.CreatedAt = v
			}
		case "startDate":
			if raw == nil {
				t.StartDate = nil
			} else if v, ok := asMillis(raw); ok {
				t.StartDate = &v
			}
		case "dueDate":
			if raw == nil {
				t.DueDate = nil
			} else if v, ok := asMillis(raw); ok {
				t.DueDate = &v
			}
		case "completion":
			if v, ok := asInt(raw); ok {
				t.Completion = v
			}
		case "assignee":
			if v, ok := asString(raw); ok {
				t.Assignee = v
			}
		case "wbs":
			if v, ok := asString(raw); ok {
				t.WBS = v
			}
		case "isMilestone":
			if v, ok := asBool(raw); ok {
				t.IsMilestone = v
			}
		case "predecessors":
			if v, ok := asStringSlice(raw); ok {
				t.Predecessors = v
			}
		}
	}
}

func asString(raw interface{}) (string, bool) {
	s, ok := raw.(string)
	return s, ok
}

// asMillis accepts JSON numbers, json.Number, and numeric strings.
func asMillis(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asInt(raw interface{}) (int, bool) {
	n, ok := asMillis(raw)
	return int(n), ok
}

func asBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

func asStringSlice(raw interface{}) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := asString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
