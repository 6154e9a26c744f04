package tool

type (
	// WireTool is the discovery document returned to the agent and UI for a
	// registered tool.
	WireTool struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Category    string         `json:"category,omitempty"`
		Parameters  WireParameters `json:"parameters"`
		Examples    []Example      `json:"examples,omitempty"`
	}

	// WireParameters is the JSON Schema shaped parameter block of a WireTool.
	WireParameters struct {
		Type       string                  `json:"type"`
		Properties map[string]WireProperty `json:"properties"`
		Required   []string                `json:"required"`
	}

	// WireProperty is the wire form of a single schema property.
	WireProperty struct {
		Type        string   `json:"type"`
		Description string   `json:"description,omitempty"`
		Required    bool     `json:"required"`
		Enum        []string `json:"enum,omitempty"`
		Pattern     string   `json:"pattern,omitempty"`
		Minimum     *float64 `json:"minimum,omitempty"`
		Maximum     *float64 `json:"maximum,omitempty"`
		MinLength   *int     `json:"minLength,omitempty"`
		MaxLength   *int     `json:"maxLength,omitempty"`
		Default     any      `json:"default,omitempty"`
	}
)

// Wire renders the descriptor into its discovery document.
func (d Descriptor) Wire() WireTool {
	props := make(map[string]WireProperty, len(d.Schema.Properties))
	for _, p := range d.Schema.Properties {
		props[p.Name] = WireProperty{
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required || d.Schema.IsRequired(p.Name),
			Enum:        append([]string(nil), p.Enum...),
			Pattern:     p.Pattern,
			Minimum:     p.Minimum,
			Maximum:     p.Maximum,
			MinLength:   p.MinLength,
			MaxLength:   p.MaxLength,
			Default:     p.Default,
		}
	}
	required := append([]string(nil), d.Schema.Required...)
	if required == nil {
		required = []string{}
	}
	return WireTool{
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Parameters: WireParameters{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
		Examples: d.Examples,
	}
}

// JSONSchema renders the parameter schema as a plain JSON Schema document
// suitable for schema compilers and model tool definitions.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		prop := map[string]any{"type": jsonSchemaType(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		if p.Pattern != "" {
			prop["pattern"] = p.Pattern
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		if p.MinLength != nil {
			prop["minLength"] = *p.MinLength
		}
		if p.MaxLength != nil {
			prop["maxLength"] = *p.MaxLength
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
	}
	required := make([]any, len(s.Required))
	for i, name := range s.Required {
		required[i] = name
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func jsonSchemaType(t string) string {
	switch t {
	case "", "object":
		return "object"
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	default:
		return t
	}
}
