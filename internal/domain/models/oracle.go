package models

import "encoding/json"

// Prompt addresses one oracle call. Model is a tier name ("small", "reason",
// ...) resolved per platform.
type Prompt struct {
	System   string
	Input    string
	Model    string
	Platform string
}

// ToolSpec declares a function the model must call. Parameters is a JSON schema.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}
