package tools

import "encoding/json"

// NormalizeSchema rewrites a tool input schema into the JSON-Schema subset
// accepted by strict tool validators (draft 2020-12 keywords only).
//
// The input is never modified. Anything that is not a JSON object degrades
// to an empty object schema.
func NormalizeSchema(in any) map[string]any {
	root, ok := deepCopy(in).(map[string]any)
	if !ok {
		return emptyObjectSchema()
	}

	root = normalizeNode(root)

	switch root["type"].(type) {
	case string, []any:
	default:
		root["type"] = "object"
	}

	if root["type"] == "object" {
		if _, ok := root["properties"].(map[string]any); !ok {
			root["properties"] = map[string]any{}
		}
		if _, ok := root["required"]; !ok {
			root["required"] = []any{}
		}
	}
	if req, ok := root["required"]; ok {
		if _, isList := req.([]any); !isList {
			root["required"] = []any{}
		}
	}
	return root
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []any{},
	}
}

func normalizeNode(node map[string]any) map[string]any {
	if v, ok := node["id"]; ok {
		if _, has := node["$id"]; !has {
			node["$id"] = v
			delete(node, "id")
		}
	}
	if v, ok := node["definitions"]; ok {
		if _, has := node["$defs"]; !has {
			node["$defs"] = v
			delete(node, "definitions")
		}
	}

	if nullable, ok := node["nullable"].(bool); ok {
		if nullable {
			switch t := node["type"].(type) {
			case string:
				node["type"] = []any{t, "null"}
			case []any:
				if !containsValue(t, "null") {
					node["type"] = append(t, "null")
				}
			}
		}
		delete(node, "nullable")
	}

	if items, ok := node["items"].([]any); ok {
		node["prefixItems"] = normalizeList(items)
		delete(node, "items")
	}

	foldExclusiveBound(node, "exclusiveMinimum", "minimum")
	foldExclusiveBound(node, "exclusiveMaximum", "maximum")

	for _, key := range []string{"properties", "$defs"} {
		if m, ok := node[key].(map[string]any); ok {
			for k, v := range m {
				if child, ok := v.(map[string]any); ok {
					m[k] = normalizeNode(child)
				}
			}
		}
	}
	for _, key := range []string{"items", "additionalProperties", "not"} {
		if child, ok := node[key].(map[string]any); ok {
			node[key] = normalizeNode(child)
		}
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		if list, ok := node[key].([]any); ok {
			node[key] = normalizeList(list)
		}
	}
	return node
}

func normalizeList(list []any) []any {
	out := make([]any, len(list))
	for i, v := range list {
		if child, ok := v.(map[string]any); ok {
			out[i] = normalizeNode(child)
		} else {
			out[i] = v
		}
	}
	return out
}

// foldExclusiveBound converts the draft-4 boolean form of exclusiveMinimum /
// exclusiveMaximum into the numeric form.
func foldExclusiveBound(node map[string]any, exclusiveKey, boundKey string) {
	flag, ok := node[exclusiveKey].(bool)
	if !ok {
		return
	}
	if !flag {
		delete(node, exclusiveKey)
		return
	}
	if bound, ok := node[boundKey]; ok && isNumber(bound) {
		node[exclusiveKey] = bound
		delete(node, boundKey)
		return
	}
	delete(node, exclusiveKey)
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

func containsValue(list []any, want any) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}
