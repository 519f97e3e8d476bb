package main

import (
	"time"

	"github.com/sovereignrun/agentcore/tools"
)

// currentTimeTool is a small side-effect-free demo tool so agentctl has
// something to dispatch without requiring the caller to wire one in.
func currentTimeTool() tools.Tool {
	schema := tools.MustJSONSchema(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	})
	return tools.Tool{
		Name:        "current_time",
		Description: "Returns the current UTC time in RFC 3339 format.",
		Parameters:  schema,
		Execute: func(_ tools.Context, _ any) (any, error) {
			return map[string]any{"time": time.Now().UTC().Format(time.RFC3339)}, nil
		},
	}
}
