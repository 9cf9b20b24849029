package fields

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

const customFieldPrefix = "customfield_"

// AllowedValue is one allowed option of a schema field. The remote schema
// supplies whichever subset of these members applies to the field type.
type AllowedValue struct {
	ID    string `json:"id,omitempty"`
	Value string `json:"value,omitempty"`
	Key   string `json:"key,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SchemaField describes one field as exposed by the remote create metadata
// for a project and issue type
type SchemaField struct {
	ID            string         `json:"field"`
	Name          string         `json:"name"`
	Type          string         `json:"schema"`
	Required      bool           `json:"required"`
	AllowedValues []AllowedValue `json:"allowedValues"`
}

// Value is the canonical shape for a filled-in custom field on an issue
type Value struct {
	ID    string      `json:"id"`
	Key   string      `json:"key"`
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// IsCustomField reports whether a field id follows the custom-field naming
// convention
func IsCustomField(fieldID string) bool {
	return strings.HasPrefix(fieldID, customFieldPrefix)
}

// Normalize converts one raw (fieldID, rawValue) pair into its canonical
// shape. The second return value is false when the field is suppressed:
// not a custom field, absent value, or blacklisted for the issue's type.
// The displayName degrades to the field id when the schema descriptor is
// unknown.
func Normalize(fieldID string, rawValue interface{}, displayName string, blacklist sets.Set[string]) (Value, bool) {
	if !IsCustomField(fieldID) {
		return Value{}, false
	}
	if rawValue == nil {
		return Value{}, false
	}
	if blacklist.Has(fieldID) {
		return Value{}, false
	}

	name := displayName
	if name == "" {
		name = fieldID
	}

	return Value{
		ID:    numericSuffix(fieldID),
		Key:   fieldID,
		Name:  name,
		Value: extract(rawValue),
	}, true
}

// numericSuffix returns the part of the field id after the last underscore,
// or the id itself when there is none
func numericSuffix(fieldID string) string {
	if idx := strings.LastIndex(fieldID, "_"); idx >= 0 {
		return fieldID[idx+1:]
	}
	return fieldID
}

// extract collapses the remote value shapes into one: bare scalars pass
// through, single choice objects reduce to their value or name member, and
// lists reduce element-wise with a fallback to the raw list when nothing
// was extractable
func extract(rawValue interface{}) interface{} {
	switch v := rawValue.(type) {
	case map[string]interface{}:
		extracted, ok := extractMember(v)
		if !ok {
			return v
		}
		return wrapID(v, extracted)
	case []interface{}:
		extracted := make([]interface{}, 0, len(v))
		for _, element := range v {
			obj, isObject := element.(map[string]interface{})
			if !isObject {
				extracted = append(extracted, element)
				continue
			}
			if value, ok := extractMember(obj); ok {
				extracted = append(extracted, wrapID(obj, value))
			}
		}
		if len(extracted) > 0 {
			return extracted
		}
		return v
	default:
		return rawValue
	}
}

// extractMember prefers the value member of a choice object, then its name
// member
func extractMember(obj map[string]interface{}) (interface{}, bool) {
	if value, ok := obj["value"]; ok {
		return value, true
	}
	if name, ok := obj["name"]; ok {
		return name, true
	}
	return nil, false
}

// wrapID keeps the id of an id-annotated choice next to its extracted value
func wrapID(obj map[string]interface{}, extracted interface{}) interface{} {
	if id, ok := obj["id"]; ok {
		return map[string]interface{}{"id": id, "value": extracted}
	}
	return extracted
}
