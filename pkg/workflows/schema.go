package workflows

// objectSchema builds the JSON schema for a stage's structured output.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func stringProperty() map[string]any {
	return map[string]any{"type": "string"}
}

func arrayProperty() map[string]any {
	return map[string]any{"type": "array"}
}
