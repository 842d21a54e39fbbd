package conditions

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/rules"
)

// Issue kinds reported by Check
const (
	IssueUnknownField      = "unknown_field"
	IssueUnknownReference  = "unknown_reference"
	IssueUnsupported       = "unsupported_operator"
	IssueCompile           = "compile_error"
	IssueComplexNotChecked = "complex_not_checked"
)

// costLimit bounds evaluation of user-written conditions
const costLimit = 1000000

// Issue is one problem found while checking the when block
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Translation is the CEL rendering of one condition
type Translation struct {
	Index      int    `json:"index"`
	Field      string `json:"field"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
	Expression string `json:"expression,omitempty"`
}

// Report is the result of checking the conditions of a form
type Report struct {
	Mode         string        `json:"mode"`
	Translations []Translation `json:"translations"`
	Expression   string        `json:"expression,omitempty"`
	Issues       []Issue       `json:"issues"`
	Valid        bool          `json:"valid"`
}

// ConditionResult is the outcome of one condition against a sample record
type ConditionResult struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Matched bool   `json:"matched"`
	Error   string `json:"error,omitempty"`
}

// Preview is the outcome of the when block against a sample record
type Preview struct {
	Record     map[string]string `json:"record"`
	Conditions []ConditionResult `json:"conditions"`
	Matched    *bool             `json:"matched"`
	Error      string            `json:"error,omitempty"`
}

// Checker compiles conditions in a CEL environment with a single record
// variable and caches the compiled programs by expression
type Checker struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

// NewChecker creates a checker with the record environment
func NewChecker() (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable(RecordVar, cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Checker{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile type-checks an expression and returns its program.
// Expressions must evaluate to bool.
func (c *Checker) Compile(expression string) (cel.Program, error) {
	c.mu.RLock()
	prog, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must be boolean, got %s", ast.OutputType())
	}

	prog, err := c.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	c.mu.Lock()
	c.programs[expression] = prog
	c.mu.Unlock()

	return prog, nil
}

// Check translates every condition that has a field, reports references the
// catalog does not know, and compiles the combined expression.
// It never changes the form.
func (c *Checker) Check(form rules.FormState, cat *catalog.Catalog) *Report {
	report := &Report{
		Mode:         form.ConditionMode,
		Translations: []Translation{},
		Issues:       []Issue{},
	}

	var exprs []string
	for i, cond := range form.Conditions {
		if cond.Field == "" {
			continue
		}

		field := strings.TrimSpace(cond.Field)
		if cat.Len() > 0 && !cat.Has(field) {
			report.Issues = append(report.Issues, Issue{
				Index:   i,
				Field:   field,
				Kind:    IssueUnknownField,
				Message: fmt.Sprintf("поле %s не найдено среди выбранных листов", field),
			})
		}
		if v := strings.TrimSpace(cond.Value); v != "" && rules.LooksLikeReference(v) && !cat.Has(v) {
			report.Issues = append(report.Issues, Issue{
				Index:   i,
				Field:   field,
				Kind:    IssueUnknownReference,
				Message: fmt.Sprintf("значение %s похоже на ссылку на поле, но такого поля нет; будет сравниваться как текст", v),
			})
		}

		t := Translation{Index: i, Field: cond.Field, Operator: cond.Operator, Value: cond.Value}
		expr, err := Translate(cond, cat)
		if err != nil {
			kind := IssueCompile
			if errors.Is(err, ErrUnsupportedOperator) {
				kind = IssueUnsupported
			}
			report.Issues = append(report.Issues, Issue{Index: i, Field: field, Kind: kind, Message: err.Error()})
			report.Translations = append(report.Translations, t)
			continue
		}

		if _, err := c.Compile(expr); err != nil {
			report.Issues = append(report.Issues, Issue{Index: i, Field: field, Kind: IssueCompile, Message: err.Error()})
		}
		t.Expression = expr
		report.Translations = append(report.Translations, t)
		exprs = append(exprs, expr)
	}

	if form.ConditionMode == rules.ModeComplex {
		report.Issues = append(report.Issues, Issue{
			Index:   -1,
			Kind:    IssueComplexNotChecked,
			Message: "сложная логика задана текстом и не проверяется",
		})
	} else if combined, ok := Combine(form.ConditionMode, exprs); ok {
		report.Expression = combined
		if _, err := c.Compile(combined); err != nil {
			report.Issues = append(report.Issues, Issue{Index: -1, Kind: IssueCompile, Message: err.Error()})
		}
	}

	report.Valid = true
	for _, is := range report.Issues {
		if is.Kind == IssueCompile || is.Kind == IssueUnsupported || is.Kind == IssueUnknownField {
			report.Valid = false
			break
		}
	}

	return report
}

// Preview evaluates each condition and the combined expression against one
// record. A nil record is replaced by the sample record of the catalog.
// The combined result is left unset when any condition cannot be translated.
func (c *Checker) Preview(form rules.FormState, cat *catalog.Catalog, record map[string]string) *Preview {
	if record == nil {
		record = SampleRecord(cat)
	}
	p := &Preview{Record: record, Conditions: []ConditionResult{}}
	activation := map[string]any{RecordVar: record}

	var exprs []string
	skipped := 0
	for i, cond := range form.Conditions {
		if cond.Field == "" {
			continue
		}
		res := ConditionResult{Index: i, Field: cond.Field}

		expr, err := Translate(cond, cat)
		if err != nil {
			res.Error = err.Error()
			p.Conditions = append(p.Conditions, res)
			skipped++
			continue
		}
		exprs = append(exprs, expr)

		res.Matched, err = c.eval(expr, activation)
		if err != nil {
			res.Error = err.Error()
		}
		p.Conditions = append(p.Conditions, res)
	}

	if skipped > 0 {
		p.Error = fmt.Sprintf("%d of %d conditions cannot be evaluated against a single record", skipped, len(p.Conditions))
		return p
	}

	combined, ok := Combine(form.ConditionMode, exprs)
	if !ok {
		return p
	}
	matched, err := c.eval(combined, activation)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.Matched = &matched
	return p
}

func (c *Checker) eval(expr string, activation map[string]any) (bool, error) {
	prog, err := c.Compile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prog.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	matched, _ := out.Value().(bool)
	return matched, nil
}

// SampleRecord builds a record from the "Пример: <value>" descriptions the
// ingest step attaches to every field. Fields without a sample are empty.
func SampleRecord(cat *catalog.Catalog) map[string]string {
	record := make(map[string]string)
	for ref, e := range cat.Entries() {
		if v, ok := strings.CutPrefix(e.Description, "Пример: "); ok {
			record[ref] = v
		} else {
			record[ref] = ""
		}
	}
	return record
}
