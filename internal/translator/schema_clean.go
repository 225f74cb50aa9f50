package translator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// schemaBlocklist holds JSON-Schema keywords the upstream Gemini-shaped
// function-declaration schema rejects outright; they are dropped rather than
// forwarded.
var schemaBlocklist = map[string]bool{
	"$schema":              true,
	"$id":                  true,
	"$comment":             true,
	"additionalProperties": true,
	"examples":             true,
	"default":              true,
	"title":                true,
}

// schemaValidationKeywords are constraint keywords Gemini's schema dialect
// doesn't understand; rather than drop them silently, their value is folded
// into the field's description so the model still sees the constraint.
var schemaValidationKeywords = []string{
	"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
	"minLength", "maxLength", "pattern", "minItems", "maxItems",
	"format",
}

// CleanJSONSchema rewrites a tool input_schema/parameters document into the
// shape Gemini's functionDeclarations.parameters accepts: blocklisted keys
// removed, unsupported validation keywords folded into description text, and
// nullable unions (type: [T, "null"]) normalized to {type: T, nullable: true}.
// Malformed input is returned unchanged.
func CleanJSONSchema(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}
	cleaned := cleanSchemaNode(doc)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return raw
	}
	return out
}

func cleanSchemaNode(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		return cleanSchemaObject(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cleanSchemaNode(item)
		}
		return out
	default:
		return v
	}
}

func cleanSchemaObject(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	var notes []string

	for key, val := range obj {
		if schemaBlocklist[key] {
			continue
		}
		if isValidationKeyword(key) {
			notes = append(notes, fmt.Sprintf("%s: %v", key, val))
			continue
		}
		out[key] = cleanSchemaNode(val)
	}

	normalizeNullableType(out)

	if props, ok := out["properties"].(map[string]interface{}); ok {
		for name, p := range props {
			if pObj, ok := p.(map[string]interface{}); ok {
				ensureSchemaType(pObj)
				props[name] = pObj
			}
		}
	}

	if len(notes) > 0 {
		sort.Strings(notes)
		desc, _ := out["description"].(string)
		suffix := "constraints: " + strings.Join(notes, "; ")
		if desc == "" {
			out["description"] = suffix
		} else {
			out["description"] = desc + " (" + suffix + ")"
		}
	}

	return out
}

func isValidationKeyword(key string) bool {
	for _, k := range schemaValidationKeywords {
		if k == key {
			return true
		}
	}
	return false
}

// normalizeNullableType rewrites `"type": ["string", "null"]` into
// `"type": "string", "nullable": true`, the only union shape the upstream
// schema dialect supports.
func normalizeNullableType(out map[string]interface{}) {
	types, ok := out["type"].([]interface{})
	if !ok {
		return
	}
	var nonNull []string
	hasNull := false
	for _, t := range types {
		s, _ := t.(string)
		if s == "null" {
			hasNull = true
			continue
		}
		if s != "" {
			nonNull = append(nonNull, s)
		}
	}
	if len(nonNull) == 0 {
		return
	}
	out["type"] = nonNull[0]
	if hasNull {
		out["nullable"] = true
	}
}

// ensureSchemaType defaults an untyped property with "properties" or
// "enum" set to "object"/"string" respectively, since the upstream dialect
// requires every property to declare a type.
func ensureSchemaType(prop map[string]interface{}) {
	if _, hasType := prop["type"]; hasType {
		return
	}
	if _, hasProps := prop["properties"]; hasProps {
		prop["type"] = "object"
		return
	}
	if _, hasEnum := prop["enum"]; hasEnum {
		prop["type"] = "string"
	}
}
