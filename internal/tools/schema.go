package tools

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	p := map[string]any{"type": typ}
	if desc != "" {
		p["description"] = desc
	}
	return p
}

func str(desc string) map[string]any     { return prop("string", desc) }
func integer(desc string) map[string]any { return prop("integer", desc) }
func number(desc string) map[string]any  { return prop("number", desc) }
func boolean(desc string) map[string]any { return prop("boolean", desc) }

func enum(desc string, values ...string) map[string]any {
	p := str(desc)
	members := make([]any, len(values))
	for i, v := range values {
		members[i] = v
	}
	p["enum"] = members
	return p
}

// leadSelector is the set of properties every lead-scoped tool accepts
func leadSelector() map[string]any {
	return map[string]any{
		"lead_id":   integer("Lead id when known"),
		"lead_name": str("Lead name or fragment of it"),
		"email":     str("Lead email"),
		"phone":     str("Lead phone number"),
	}
}

func with(base map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
