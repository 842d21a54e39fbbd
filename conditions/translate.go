package conditions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/rules"
)

// ErrUnsupportedOperator is returned for operators that compare a record
// against other records and so have no single-record expression
var ErrUnsupportedOperator = errors.New("operator cannot be checked against a single record")

// RecordVar is the CEL variable holding one record keyed by "Alias.Field"
const RecordVar = "record"

// Translate renders one condition as a CEL expression over the record map.
// The value is read as another field when it names a catalog reference and
// as a string literal otherwise.
func Translate(c rules.ConditionItem, cat *catalog.Catalog) (string, error) {
	field := fieldExpr(strings.TrimSpace(c.Field))
	value := valueExpr(c.Value, cat)

	switch c.Operator {
	case rules.OpEmpty, "":
		return field + ` == ""`, nil
	case rules.OpNotEmpty:
		return field + ` != ""`, nil
	case rules.OpEquals:
		return field + " == " + value, nil
	case rules.OpNotEquals:
		return field + " != " + value, nil
	case rules.OpContains:
		return field + ".contains(" + value + ")", nil
	case rules.OpInList:
		return field + " in " + listExpr(c.Value), nil
	case rules.OpBefore:
		return field + " < " + value, nil
	case rules.OpAfter:
		return field + " > " + value, nil
	case rules.OpGreaterThan:
		return "double(" + field + ") > double(" + value + ")", nil
	case rules.OpLessThan:
		return "double(" + field + ") < double(" + value + ")", nil
	case rules.OpSimilarTo, rules.OpDuplicate:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOperator, c.Operator)
	default:
		return "", fmt.Errorf("unknown operator %q", c.Operator)
	}
}

// fieldExpr reads a field, treating a missing key as an empty string
func fieldExpr(ref string) string {
	key := quote(ref)
	return fmt.Sprintf(`(%s in %s ? %s[%s] : "")`, key, RecordVar, RecordVar, key)
}

func valueExpr(value string, cat *catalog.Catalog) string {
	if v := strings.TrimSpace(value); v != "" && cat.Has(v) {
		return fieldExpr(v)
	}
	return quote(value)
}

func listExpr(value string) string {
	items := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, quote(p))
		}
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// quote produces a CEL string literal
func quote(s string) string {
	return strconv.Quote(s)
}

// Combine joins condition expressions by the condition mode.
// Complex mode is free text and has no combined expression.
func Combine(mode string, exprs []string) (string, bool) {
	if len(exprs) == 0 {
		return "", false
	}

	var op string
	switch mode {
	case rules.ModeAll:
		op = " && "
	case rules.ModeAny:
		op = " || "
	default:
		return "", false
	}

	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = "(" + e + ")"
	}
	return strings.Join(parts, op), true
}
