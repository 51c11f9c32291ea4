package profile

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const ruleFileSchemaURL = "https://email-assistant.local/schemas/rule-file.schema.json"

// ruleFileSchema describes a structured rule file. Empty conditions pass so
// they surface as per-rule configuration errors instead of a corrupt file.
const ruleFileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "rules": {"type": "array", "items": {"$ref": "#/$defs/rule"}}
  },
  "$defs": {
    "rule": {
      "type": "object",
      "required": ["name", "condition", "action"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "condition": {"$ref": "#/$defs/condition"},
        "action": {"$ref": "#/$defs/action"}
      }
    },
    "condition": {
      "type": "object",
      "properties": {
        "field": {"type": "string"},
        "contains": {"type": "string"},
        "equals": {"type": "string"},
        "matches": {"type": "string"},
        "op": {"type": "string"},
        "value": {"type": "string"},
        "and": {"oneOf": [{"$ref": "#/$defs/condition"}, {"type": "string"}]},
        "or": {"$ref": "#/$defs/condition"}
      }
    },
    "action": {
      "oneOf": [
        {"enum": ["archive", "delete", "spam"]},
        {
          "type": "object",
          "required": ["label"],
          "properties": {"label": {"type": "string", "minLength": 1}},
          "additionalProperties": false
        }
      ]
    }
  }
}`

func compileRuleFileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(ruleFileSchemaURL, strings.NewReader(ruleFileSchema)); err != nil {
		return nil, fmt.Errorf("rule file schema load failed: %w", err)
	}
	schema, err := c.Compile(ruleFileSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("rule file schema compile failed: %w", err)
	}
	return schema, nil
}
