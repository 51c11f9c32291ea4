package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// conditionJSON is the on-disk shape of a Condition. The operator is the key
// holding the value ({"field":"to","contains":"x"}); {"op":..,"value":..} is
// accepted as well.
type conditionJSON struct {
	Field    string          `json:"field,omitempty"`
	Contains *string         `json:"contains,omitempty"`
	Equals   *string         `json:"equals,omitempty"`
	Matches  *string         `json:"matches,omitempty"`
	Op       string          `json:"op,omitempty"`
	Value    *string         `json:"value,omitempty"`
	And      json.RawMessage `json:"and,omitempty"`
	Or       *Condition      `json:"or,omitempty"`
}

// UnmarshalJSON decodes a condition from a rule file
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cond := Condition{Field: Field(raw.Field), Or: raw.Or}
	switch {
	case raw.Contains != nil:
		cond.Op, cond.Value = OpContains, *raw.Contains
	case raw.Equals != nil:
		cond.Op, cond.Value = OpEquals, *raw.Equals
	case raw.Matches != nil:
		cond.Op, cond.Value = OpMatches, *raw.Matches
	case raw.Op != "":
		cond.Op = Operator(raw.Op)
		if raw.Value != nil {
			cond.Value = *raw.Value
		}
	}

	if trimmed := bytes.TrimSpace(raw.And); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] == '"' {
			if err := json.Unmarshal(trimmed, &cond.AndFlag); err != nil {
				return fmt.Errorf("decoding and: %w", err)
			}
		} else {
			var and Condition
			if err := json.Unmarshal(trimmed, &and); err != nil {
				return fmt.Errorf("decoding and: %w", err)
			}
			cond.And = &and
		}
	}

	*c = cond
	return nil
}

// MarshalJSON encodes a condition in the rule file shape
func (c Condition) MarshalJSON() ([]byte, error) {
	raw := conditionJSON{Field: string(c.Field), Or: c.Or}
	value := c.Value
	switch c.Op {
	case OpContains:
		raw.Contains = &value
	case OpEquals:
		raw.Equals = &value
	case OpMatches:
		raw.Matches = &value
	case "":
	default:
		raw.Op = string(c.Op)
		raw.Value = &value
	}

	var err error
	switch {
	case c.And != nil:
		raw.And, err = json.Marshal(c.And)
	case c.AndFlag != "":
		raw.And, err = json.Marshal(c.AndFlag)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes "archive", "delete", "spam" or {"label": "<name>"}
func (a *Action) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		k := ActionKind(kind)
		if !k.IsTerminal() {
			return fmt.Errorf("unknown action %q", kind)
		}
		*a = Action{Kind: k}
		return nil
	}

	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Label == "" {
		return fmt.Errorf("label action without a name")
	}
	*a = Action{Kind: ActionLabel, Label: obj.Label}
	return nil
}

// MarshalJSON encodes the action in the rule file shape
func (a Action) MarshalJSON() ([]byte, error) {
	if a.Kind == ActionLabel {
		return json.Marshal(map[string]string{"label": a.Label})
	}
	return json.Marshal(string(a.Kind))
}

// ruleJSON is the on-disk shape of a Rule
type ruleJSON struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Condition   Condition `json:"condition"`
	Action      Action    `json:"action"`
}

// UnmarshalJSON decodes a rule from a rule file
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Rule{
		Name:        raw.Name,
		Description: raw.Description,
		Condition:   raw.Condition,
		Action:      raw.Action,
		Source:      r.Source,
	}
	return nil
}

// MarshalJSON encodes a rule in the rule file shape
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{
		Name:        r.Name,
		Description: r.Description,
		Condition:   r.Condition,
		Action:      r.Action,
	})
}
