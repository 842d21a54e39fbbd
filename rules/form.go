package rules

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnknownField is returned when a form edit names a field the form does not have
	ErrUnknownField = errors.New("unknown form field")

	// ErrInvalidValue is returned when a form edit carries a value of the wrong type or outside its enum
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownKind is returned for a dynamic list kind other than the four known ones
	ErrUnknownKind = errors.New("unknown item kind")

	// ErrItemNotFound is returned when a dynamic list item ID does not exist
	ErrItemNotFound = errors.New("item not found")
)

// DefaultPriority is used when a form or template does not set one
const DefaultPriority = 50

// NewForm returns a form with baseline defaults and one blank item in each
// of the preparation, condition and validation lists
func NewForm() FormState {
	f := baseline()
	f.DataPreparation = []PreparationItem{{ID: newItemID()}}
	f.Conditions = []ConditionItem{{ID: newItemID(), Operator: OpEmpty}}
	f.ValidationChecks = []CheckItem{{ID: newItemID()}}
	return f
}

func baseline() FormState {
	return FormState{
		Priority:             DefaultPriority,
		Enabled:              true,
		ConditionMode:        ModeAll,
		MainAction:           "fill",
		HandleErrors:         "skip",
		DuplicateStrategy:    "keep_first",
		ValidationFailAction: "rollback",
		DataPreparation:      []PreparationItem{},
		Conditions:           []ConditionItem{},
		ValidationChecks:     []CheckItem{},
		MergeFields:          []MergeItem{},
	}
}

func newItemID() string {
	return uuid.NewString()
}

// Clone returns a copy of the form that shares no list storage with f
func (f FormState) Clone() FormState {
	c := f
	c.DataPreparation = append([]PreparationItem{}, f.DataPreparation...)
	c.Conditions = append([]ConditionItem{}, f.Conditions...)
	c.ValidationChecks = append([]CheckItem{}, f.ValidationChecks...)
	c.MergeFields = append([]MergeItem{}, f.MergeFields...)
	return c
}

// SetField assigns one scalar field by its JSON name.
// On error the form is left unchanged.
func (f *FormState) SetField(name string, value any) error {
	switch name {
	case "priority":
		p, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%w for priority: %v", ErrInvalidValue, err)
		}
		f.Priority = p
		return nil
	case "enabled":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w for enabled: expected boolean, got %T", ErrInvalidValue, value)
		}
		f.Enabled = b
		return nil
	}

	target, allowed := f.stringField(name)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w for %s: expected string, got %T", ErrInvalidValue, name, value)
	}
	if allowed != nil && !slices.Contains(allowed, s) {
		return fmt.Errorf("%w for %s: %q (allowed: %s)", ErrInvalidValue, name, s, strings.Join(allowed, ", "))
	}

	*target = s
	return nil
}

// stringField maps a JSON field name to its storage and, for enum fields,
// the allowed values
func (f *FormState) stringField(name string) (*string, []string) {
	switch name {
	case "ruleName":
		return &f.RuleName, nil
	case "problem":
		return &f.Problem, nil
	case "conditionMode":
		return &f.ConditionMode, ConditionModes
	case "complexLogic":
		return &f.ComplexLogic, nil
	case "mainAction":
		return &f.MainAction, MainActions
	case "actionDetails":
		return &f.ActionDetails, nil
	case "handleConflicts":
		return &f.HandleConflicts, nil
	case "handleErrors":
		return &f.HandleErrors, ErrorHandlers
	case "groupBy":
		return &f.GroupBy, nil
	case "duplicateKeys":
		return &f.DuplicateKeys, nil
	case "duplicateStrategy":
		return &f.DuplicateStrategy, DuplicateStrategies
	case "requiresRules":
		return &f.RequiresRules, nil
	case "blocksRules":
		return &f.BlocksRules, nil
	case "validationFailAction":
		return &f.ValidationFailAction, ValidationFailOptions
	}
	return nil, nil
}

// ApplyPatch sets several scalar fields at once. Either every field is
// applied or, on the first error, none are.
func (f *FormState) ApplyPatch(patch map[string]any) error {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	next := f.Clone()
	for _, k := range keys {
		if err := next.SetField(k, patch[k]); err != nil {
			return err
		}
	}
	*f = next
	return nil
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

// AddItem appends a blank item to a dynamic list and returns its ID
func (f *FormState) AddItem(kind string) (string, error) {
	id := newItemID()
	switch kind {
	case KindDataPreparation:
		f.DataPreparation = append(f.DataPreparation, PreparationItem{ID: id})
	case KindConditions:
		f.Conditions = append(f.Conditions, ConditionItem{ID: id, Operator: OpEmpty})
	case KindValidationChecks:
		f.ValidationChecks = append(f.ValidationChecks, CheckItem{ID: id})
	case KindMergeFields:
		f.MergeFields = append(f.MergeFields, MergeItem{ID: id, Strategy: "first_not_empty"})
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return id, nil
}

// RemoveItem deletes an item from a dynamic list
func (f *FormState) RemoveItem(kind, id string) error {
	var removed bool
	switch kind {
	case KindDataPreparation:
		f.DataPreparation, removed = removeByID(f.DataPreparation, id, func(it PreparationItem) string { return it.ID })
	case KindConditions:
		f.Conditions, removed = removeByID(f.Conditions, id, func(it ConditionItem) string { return it.ID })
	case KindValidationChecks:
		f.ValidationChecks, removed = removeByID(f.ValidationChecks, id, func(it CheckItem) string { return it.ID })
	case KindMergeFields:
		f.MergeFields, removed = removeByID(f.MergeFields, id, func(it MergeItem) string { return it.ID })
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if !removed {
		return fmt.Errorf("%w: %s/%s", ErrItemNotFound, kind, id)
	}
	return nil
}

func removeByID[T any](items []T, id string, idOf func(T) string) ([]T, bool) {
	for i, it := range items {
		if idOf(it) == id {
			return slices.Delete(items, i, i+1), true
		}
	}
	return items, false
}

// UpdateItem sets one property of a dynamic list item.
// Properties per kind: dataPreparation action; conditions field, operator,
// value; validationChecks check; mergeFields field, strategy.
func (f *FormState) UpdateItem(kind, id, prop, value string) error {
	switch kind {
	case KindDataPreparation:
		i := indexByID(f.DataPreparation, id, func(it PreparationItem) string { return it.ID })
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, kind, id)
		}
		if prop != "action" {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, prop)
		}
		f.DataPreparation[i].Action = value

	case KindConditions:
		i := indexByID(f.Conditions, id, func(it ConditionItem) string { return it.ID })
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, kind, id)
		}
		switch prop {
		case "field":
			f.Conditions[i].Field = value
		case "operator", "check":
			if !slices.Contains(Operators, value) {
				return fmt.Errorf("%w for operator: %q", ErrInvalidValue, value)
			}
			f.Conditions[i].Operator = value
		case "value":
			f.Conditions[i].Value = value
		default:
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, prop)
		}

	case KindValidationChecks:
		i := indexByID(f.ValidationChecks, id, func(it CheckItem) string { return it.ID })
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, kind, id)
		}
		if prop != "check" {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, prop)
		}
		f.ValidationChecks[i].Check = value

	case KindMergeFields:
		i := indexByID(f.MergeFields, id, func(it MergeItem) string { return it.ID })
		if i < 0 {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, kind, id)
		}
		switch prop {
		case "field":
			f.MergeFields[i].Field = value
		case "strategy":
			if !slices.Contains(MergeStrategies, value) {
				return fmt.Errorf("%w for strategy: %q", ErrInvalidValue, value)
			}
			f.MergeFields[i].Strategy = value
		default:
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, prop)
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return nil
}

func indexByID[T any](items []T, id string, idOf func(T) string) int {
	return slices.IndexFunc(items, func(it T) bool { return idOf(it) == id })
}
