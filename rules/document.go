package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RuleDocument is the structured description of a rule handed to the downstream agent.
// It is never mutated after Compile returns.
type RuleDocument struct {
	RuleID    string `json:"rule_id"`
	RuleName  string `json:"rule_name"`
	Problem   string `json:"problem"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"created_at"`

	DataSources       DataSources        `json:"data_sources"`
	DataPreparation   DataPreparation    `json:"data_preparation"`
	When              When               `json:"when"`
	WhatToDo          WhatToDo           `json:"what_to_do"`
	Validation        Validation         `json:"validation"`
	Dependencies      Dependencies       `json:"dependencies"`
	DuplicateHandling *DuplicateHandling `json:"duplicate_handling,omitempty"`
}

// DataSources records the provenance of the fields a rule may reference
type DataSources struct {
	Description  string                `json:"описание"`
	Files        map[string]SourceFile `json:"файлы"`
	FieldAliases map[string]FieldAlias `json:"алиасы_полей"`
	Stats        SourceStats           `json:"общая_статистика"`
}

// SourceFile describes one loaded file with at least one selected sheet
type SourceFile struct {
	PrimaryAlias string                 `json:"основной_алиас"`
	MultiSheet   bool                   `json:"многостраничный"`
	Sheets       map[string]SourceSheet `json:"листы"`
}

// SourceSheet describes one selected sheet
type SourceSheet struct {
	Alias      string   `json:"алиас"`
	FieldCount int      `json:"количество_полей"`
	Fields     []string `json:"поля"`
}

// FieldAlias resolves a field reference back to its source
type FieldAlias struct {
	File        string `json:"исходный_файл"`
	Sheet       string `json:"лист"`
	Field       string `json:"поле"`
	Description string `json:"описание"`
}

// SourceStats aggregates counts over all loaded files
type SourceStats struct {
	FilesLoaded     int `json:"загружено_файлов"`
	SheetsSelected  int `json:"выбрано_листов"`
	FieldsAvailable int `json:"доступно_полей"`
}

// DataPreparation lists the classified preparation steps
type DataPreparation struct {
	Description string              `json:"описание"`
	Actions     []PreparationAction `json:"действия"`
}

// PreparationAction is a classified data preparation step
type PreparationAction struct {
	Type        string  `json:"type"`
	Field       string  `json:"field,omitempty"`
	Format      string  `json:"format,omitempty"`
	ReplaceWith *string `json:"replace_with,omitempty"`
	Description string  `json:"description"`
}

// When holds the conditions under which the rule applies
type When struct {
	Description  string          `json:"описание"`
	Mode         string          `json:"режим"`
	Conditions   []ConditionSpec `json:"conditions"`
	GroupBy      *string         `json:"group_by"`
	ComplexLogic *string         `json:"complex_logic,omitempty"`
}

// ConditionSpec is one typed condition
type ConditionSpec struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	ValueType string `json:"value_type"`
}

// Value types of a condition
const (
	ValueTypeString         = "string"
	ValueTypeFieldReference = "field_reference"
)

// WhatToDo describes the action of the rule
type WhatToDo struct {
	Action          string            `json:"action"`
	Details         string            `json:"details"`
	Formulas        map[string]string `json:"formulas,omitempty"`
	Logic           *Logic            `json:"logic,omitempty"`
	HandleConflicts *string           `json:"handle_conflicts"`
	HandleErrors    string            `json:"handle_errors"`
}

// Logic flags free text that contains conditional logic. Expression is the
// text verbatim; it is not parsed.
type Logic struct {
	Type       string `json:"type"`
	Expression string `json:"expression"`
}

// Validation lists the classified post-application checks
type Validation struct {
	Description string        `json:"описание"`
	Checks      []CheckResult `json:"checks"`
	OnFail      string        `json:"on_fail"`
}

// CheckResult is a classified validation check
type CheckResult struct {
	Type     string `json:"type"`
	Field    string `json:"field,omitempty"`
	Field1   string `json:"field1,omitempty"`
	Field2   string `json:"field2,omitempty"`
	MaxValue *int   `json:"max_value,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Message  string `json:"message"`
}

// Dependencies links the rule to other rules by ID
type Dependencies struct {
	Description string   `json:"описание"`
	Requires    []string `json:"requires"`
	Blocks      []string `json:"blocks"`
}

// DuplicateHandling configures merging of duplicate records
type DuplicateHandling struct {
	Description     string            `json:"описание"`
	KeyFields       []string          `json:"ключевые_поля"`
	Strategy        string            `json:"стратегия"`
	MergeStrategies map[string]string `json:"при_объединении"`
}

// Marshal renders a document as indented JSON. Cyrillic text and
// comparison operators are written as-is.
func Marshal(doc *RuleDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode rule document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DownloadFilename returns the file name a rule is saved under
func DownloadFilename(ruleName string) string {
	if ruleName == "" {
		ruleName = "unnamed"
	}
	return "rule_" + ruleName + ".json"
}
