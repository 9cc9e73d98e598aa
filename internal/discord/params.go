package discord

import "encoding/json"

// Validated params arrive as generic JSON values. These accessors assume
// the schema validator already enforced types; they only coerce shape.

func strParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func boolParam(params map[string]any, key string) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return false
}

func strSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// embedsParam decodes an embeds argument through a JSON round trip, since
// inbound values are generic maps.
func embedsParam(params map[string]any, key string) []Embed {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var embeds []Embed
	if json.Unmarshal(data, &embeds) != nil {
		return nil
	}
	return embeds
}

// resourceIDs builds a cache-tagging extractor reading the named id params.
func resourceIDs(keys ...string) func(params map[string]any) []string {
	return func(params map[string]any) []string {
		out := make([]string, 0, len(keys))
		for _, key := range keys {
			if id := strParam(params, key); id != "" {
				out = append(out, id)
			}
		}
		return out
	}
}

// staticResources tags every call of a tool with the same resource names,
// for listings not scoped by an id parameter.
func staticResources(ids ...string) func(params map[string]any) []string {
	return func(map[string]any) []string { return ids }
}
