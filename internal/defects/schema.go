package defects

// Schema variants. The enum variant pins room, location, work type and the
// defect key to the fixed vocabulary; the text variant leaves them free-form
// and relies on the prompt alone.
const (
	SchemaEnum = "enum"
	SchemaText = "text"
)

// BuildSchema returns the JSON-Schema (draft 2020-12 subset) for the model
// reply as a generic map. We pass it to the model as a structured output
// constraint and also use it locally to validate.
func BuildSchema(variant string) map[string]any {
	props := map[string]any{
		"source_text": map[string]any{"type": "string", "minLength": 1},
		"room":        map[string]any{"type": "string", "minLength": 1},
		"location":    map[string]any{"type": "string", "minLength": 1},
		"defect":      map[string]any{"type": "string", "minLength": 1},
		"work_type":   map[string]any{"type": "string", "minLength": 1},
	}

	if variant == SchemaEnum {
		props["room"] = map[string]any{"type": "string", "enum": RoomStrings()}
		props["location"] = map[string]any{"type": "string", "enum": LocationStrings()}
		props["defect"] = map[string]any{"type": "string", "enum": Keys()}
		props["work_type"] = map[string]any{"type": "string", "enum": WorkTypeStrings()}
	}

	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"source_text", "room", "location", "defect", "work_type"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"defects": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"defects"},
	}
}
