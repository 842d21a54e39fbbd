package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/liamcoop/uecnrules/catalog"
)

// Section descriptions written into every document
const (
	descDataSources     = "Информация об источниках данных для правила"
	descDataPreparation = "Подготовка данных перед проверкой"
	descWhen            = "Условия применения правила"
	descValidation      = "Проверка после применения"
	descDependencies    = "Связи с другими правилами"
	descDuplicates      = "Обработка дубликатов"
)

// createdAtLayout matches the millisecond UTC timestamps downstream consumers expect
const createdAtLayout = "2006-01-02T15:04:05.000Z"

var reLooksLikeReference = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*\.[\p{L}\p{N}_]+$`)

// Compiler turns form state into rule documents.
// It owns the RULE001, RULE002, ... sequence of one session; the sequence is
// not persisted and restarts with every new Compiler.
type Compiler struct {
	seq int
	now func() time.Time
	mu  sync.Mutex
}

// NewCompiler creates a compiler whose sequence starts at RULE001
func NewCompiler() *Compiler {
	return &Compiler{now: time.Now}
}

// WithClock replaces the time source, for tests
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Compile builds a document from the form and the loaded files.
// It never fails: text that matches no pattern degrades to a custom entry.
func (c *Compiler) Compile(form FormState, files []*catalog.File) *RuleDocument {
	c.mu.Lock()
	c.seq++
	id := fmt.Sprintf("RULE%03d", c.seq)
	now := c.now()
	c.mu.Unlock()

	return BuildDocument(form, files, id, now)
}

// Sequence returns how many documents this compiler has produced
func (c *Compiler) Sequence() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// BuildDocument is the pure part of Compile: the same inputs always give the same document
func BuildDocument(form FormState, files []*catalog.File, ruleID string, createdAt time.Time) *RuleDocument {
	cat := catalog.Build(files)

	doc := &RuleDocument{
		RuleID:    ruleID,
		RuleName:  form.RuleName,
		Problem:   form.Problem,
		Priority:  form.Priority,
		Enabled:   form.Enabled,
		CreatedAt: createdAt.UTC().Format(createdAtLayout),

		DataSources: buildDataSources(files),
		DataPreparation: DataPreparation{
			Description: descDataPreparation,
			Actions:     buildPreparation(form.DataPreparation),
		},
		When: buildWhen(form, cat),
		WhatToDo: WhatToDo{
			Action:          form.MainAction,
			Details:         form.ActionDetails,
			Formulas:        ExtractFormulas(form.ActionDetails),
			HandleConflicts: nullable(form.HandleConflicts),
			HandleErrors:    form.HandleErrors,
		},
		Validation: Validation{
			Description: descValidation,
			Checks:      buildChecks(form.ValidationChecks),
			OnFail:      form.ValidationFailAction,
		},
		Dependencies: Dependencies{
			Description: descDependencies,
			Requires:    splitList(form.RequiresRules),
			Blocks:      splitList(form.BlocksRules),
		},
	}

	if HasConditionalLogic(form.ActionDetails) {
		doc.WhatToDo.Logic = &Logic{Type: "conditional", Expression: form.ActionDetails}
	}

	if form.MainAction == ActionMergeDuplicates {
		doc.DuplicateHandling = buildDuplicateHandling(form)
	}

	return doc
}

func buildDataSources(files []*catalog.File) DataSources {
	ds := DataSources{
		Description:  descDataSources,
		Files:        make(map[string]SourceFile),
		FieldAliases: make(map[string]FieldAlias),
	}

	for _, f := range files {
		if f == nil {
			continue
		}
		ds.Stats.FilesLoaded++

		selected := f.SelectedSheets()
		ds.Stats.SheetsSelected += len(selected)
		if len(selected) == 0 {
			continue
		}

		sf := SourceFile{
			PrimaryAlias: f.Alias,
			MultiSheet:   f.MultiSheet,
			Sheets:       make(map[string]SourceSheet, len(selected)),
		}

		for _, s := range selected {
			sf.Sheets[s.Name] = SourceSheet{
				Alias:      s.Alias,
				FieldCount: s.FieldCount(),
				Fields:     append([]string{}, s.Fields...),
			}
			ds.Stats.FieldsAvailable += s.FieldCount()

			for _, field := range s.Fields {
				ds.FieldAliases[catalog.Reference(s.Alias, field)] = FieldAlias{
					File:        f.Name,
					Sheet:       s.Name,
					Field:       field,
					Description: s.Description(field),
				}
			}
		}

		ds.Files[f.Name] = sf
	}

	return ds
}

func buildPreparation(items []PreparationItem) []PreparationAction {
	actions := []PreparationAction{}
	for _, it := range items {
		if it.Action == "" {
			continue
		}
		actions = append(actions, ClassifyPreparation(it.Action))
	}
	return actions
}

func buildWhen(form FormState, cat *catalog.Catalog) When {
	w := When{
		Description: descWhen,
		Mode:        modeLabel(form.ConditionMode),
		Conditions:  []ConditionSpec{},
		GroupBy:     nullable(form.GroupBy),
	}

	for _, c := range form.Conditions {
		if c.Field == "" {
			continue
		}
		op := c.Operator
		if op == "" {
			op = OpEmpty
		}
		w.Conditions = append(w.Conditions, ConditionSpec{
			Field:     c.Field,
			Operator:  op,
			Value:     c.Value,
			ValueType: valueType(c.Value, cat),
		})
	}

	if form.ConditionMode == ModeComplex {
		logic := form.ComplexLogic
		w.ComplexLogic = &logic
	}

	return w
}

func modeLabel(mode string) string {
	switch mode {
	case ModeAll:
		return "все условия"
	case ModeAny:
		return "любое условие"
	default:
		return "сложная логика"
	}
}

// valueType tells a comparison against another field from a literal
func valueType(value string, cat *catalog.Catalog) string {
	v := strings.TrimSpace(value)
	if v != "" && (cat.Has(v) || LooksLikeReference(v)) {
		return ValueTypeFieldReference
	}
	return ValueTypeString
}

// LooksLikeReference reports whether s has the Alias.Field shape
func LooksLikeReference(s string) bool {
	return reLooksLikeReference.MatchString(s)
}

func buildChecks(items []CheckItem) []CheckResult {
	checks := []CheckResult{}
	for _, it := range items {
		if it.Check == "" {
			continue
		}
		checks = append(checks, ClassifyCheck(it.Check))
	}
	return checks
}

func buildDuplicateHandling(form FormState) *DuplicateHandling {
	strategies := make(map[string]string)
	for _, m := range form.MergeFields {
		if m.Field == "" {
			continue
		}
		strategies[m.Field] = m.Strategy
	}

	return &DuplicateHandling{
		Description:     descDuplicates,
		KeyFields:       splitList(form.DuplicateKeys),
		Strategy:        form.DuplicateStrategy,
		MergeStrategies: strategies,
	}
}

// splitList splits comma-separated text, trimming entries and dropping empty ones
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
