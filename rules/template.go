package rules

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Template is a canned or historical rule description loaded into a form.
// Absent fields take the form defaults; absent lists get one blank item.
type Template struct {
	RuleName             string `json:"ruleName,omitempty" yaml:"ruleName,omitempty"`
	Problem              string `json:"problem,omitempty" yaml:"problem,omitempty"`
	Priority             int    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Enabled              *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ConditionMode        string `json:"conditionMode,omitempty" yaml:"conditionMode,omitempty"`
	ComplexLogic         string `json:"complexLogic,omitempty" yaml:"complexLogic,omitempty"`
	MainAction           string `json:"mainAction,omitempty" yaml:"mainAction,omitempty"`
	ActionDetails        string `json:"actionDetails,omitempty" yaml:"actionDetails,omitempty"`
	HandleConflicts      string `json:"handleConflicts,omitempty" yaml:"handleConflicts,omitempty"`
	HandleErrors         string `json:"handleErrors,omitempty" yaml:"handleErrors,omitempty"`
	GroupBy              string `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	DuplicateKeys        string `json:"duplicateKeys,omitempty" yaml:"duplicateKeys,omitempty"`
	DuplicateStrategy    string `json:"duplicateStrategy,omitempty" yaml:"duplicateStrategy,omitempty"`
	RequiresRules        string `json:"requiresRules,omitempty" yaml:"requiresRules,omitempty"`
	BlocksRules          string `json:"blocksRules,omitempty" yaml:"blocksRules,omitempty"`
	ValidationFailAction string `json:"validationFailAction,omitempty" yaml:"validationFailAction,omitempty"`

	DataPreparation  []TemplateAction    `json:"dataPreparation,omitempty" yaml:"dataPreparation,omitempty"`
	Conditions       []TemplateCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	ValidationChecks []TemplateCheck     `json:"validationChecks,omitempty" yaml:"validationChecks,omitempty"`
	MergeFields      []TemplateMerge     `json:"mergeFields,omitempty" yaml:"mergeFields,omitempty"`
}

// TemplateAction is a preparation step given either as a string or as {action: ...}
type TemplateAction struct {
	Action string `json:"action" yaml:"action"`
}

// TemplateCheck is a validation check given either as a string or as {check: ...}
type TemplateCheck struct {
	Check string `json:"check" yaml:"check"`
}

// TemplateCondition accepts the operator under "operator" or the older "check" key
type TemplateCondition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Check    string `json:"check,omitempty" yaml:"check,omitempty"`
	Value    string `json:"value" yaml:"value"`
}

// TemplateMerge is one field/strategy pair
type TemplateMerge struct {
	Field    string `json:"field" yaml:"field"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

func (a *TemplateAction) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Action)
	}
	type plain TemplateAction
	return json.Unmarshal(data, (*plain)(a))
}

func (a *TemplateAction) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&a.Action)
	}
	type plain TemplateAction
	return node.Decode((*plain)(a))
}

func (c *TemplateCheck) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Check)
	}
	type plain TemplateCheck
	return json.Unmarshal(data, (*plain)(c))
}

func (c *TemplateCheck) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Check)
	}
	type plain TemplateCheck
	return node.Decode((*plain)(c))
}

// ParseTemplate reads a template from YAML or JSON; JSON is a subset of YAML
func ParseTemplate(data []byte) (Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("failed to parse template: %w", err)
	}
	return t, nil
}

// ApplyTemplate returns a fresh form built from the template. Every scalar is
// overwritten and every list item gets a new ID, so nothing from the
// previous form survives.
func ApplyTemplate(t Template) FormState {
	f := baseline()

	f.RuleName = t.RuleName
	f.Problem = t.Problem
	if t.Priority != 0 {
		f.Priority = t.Priority
	}
	if t.Enabled != nil {
		f.Enabled = *t.Enabled
	}
	f.ConditionMode = orDefault(t.ConditionMode, f.ConditionMode)
	f.ComplexLogic = t.ComplexLogic
	f.MainAction = orDefault(t.MainAction, f.MainAction)
	f.ActionDetails = t.ActionDetails
	f.HandleConflicts = t.HandleConflicts
	f.HandleErrors = orDefault(t.HandleErrors, f.HandleErrors)
	f.GroupBy = t.GroupBy
	f.DuplicateKeys = t.DuplicateKeys
	f.DuplicateStrategy = orDefault(t.DuplicateStrategy, f.DuplicateStrategy)
	f.RequiresRules = t.RequiresRules
	f.BlocksRules = t.BlocksRules
	f.ValidationFailAction = orDefault(t.ValidationFailAction, f.ValidationFailAction)

	if t.DataPreparation != nil {
		for _, a := range t.DataPreparation {
			f.DataPreparation = append(f.DataPreparation, PreparationItem{ID: newItemID(), Action: a.Action})
		}
	} else {
		f.DataPreparation = []PreparationItem{{ID: newItemID()}}
	}

	if t.Conditions != nil {
		for _, c := range t.Conditions {
			op := c.Operator
			if op == "" {
				op = orDefault(c.Check, OpEmpty)
			}
			f.Conditions = append(f.Conditions, ConditionItem{
				ID:       newItemID(),
				Field:    c.Field,
				Operator: op,
				Value:    c.Value,
			})
		}
	} else {
		f.Conditions = []ConditionItem{{ID: newItemID(), Operator: OpEmpty}}
	}

	if t.ValidationChecks != nil {
		for _, c := range t.ValidationChecks {
			f.ValidationChecks = append(f.ValidationChecks, CheckItem{ID: newItemID(), Check: c.Check})
		}
	} else {
		f.ValidationChecks = []CheckItem{{ID: newItemID()}}
	}

	for _, m := range t.MergeFields {
		f.MergeFields = append(f.MergeFields, MergeItem{
			ID:       newItemID(),
			Field:    m.Field,
			Strategy: orDefault(m.Strategy, "first_not_empty"),
		})
	}

	return f
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
