package rules

import (
	"errors"
	"testing"
)

// TestNewForm verifies defaults and the initial blank items
func TestNewForm(t *testing.T) {
	f := NewForm()

	if f.Priority != 50 || !f.Enabled || f.ConditionMode != ModeAll || f.MainAction != "fill" ||
		f.HandleErrors != "skip" || f.DuplicateStrategy != "keep_first" || f.ValidationFailAction != "rollback" {
		t.Errorf("unexpected defaults: %+v", f)
	}
	if len(f.DataPreparation) != 1 || len(f.Conditions) != 1 || len(f.ValidationChecks) != 1 {
		t.Errorf("want one blank item per list, got %d/%d/%d",
			len(f.DataPreparation), len(f.Conditions), len(f.ValidationChecks))
	}
	if f.MergeFields == nil || len(f.MergeFields) != 0 {
		t.Errorf("MergeFields = %#v, want empty", f.MergeFields)
	}

	ids := map[string]bool{
		f.DataPreparation[0].ID:  true,
		f.Conditions[0].ID:       true,
		f.ValidationChecks[0].ID: true,
	}
	if len(ids) != 3 {
		t.Error("item IDs should be unique")
	}
}

// TestSetField covers typed and enum validation
func TestSetField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   any
		wantErr error
	}{
		{"string field", "ruleName", "Даты", nil},
		{"enum ok", "mainAction", ActionMergeDuplicates, nil},
		{"enum bad", "mainAction", "explode", ErrInvalidValue},
		{"priority from json number", "priority", float64(10), nil},
		{"priority from string", "priority", " 15 ", nil},
		{"priority fractional", "priority", 1.5, ErrInvalidValue},
		{"priority garbage", "priority", "высокий", ErrInvalidValue},
		{"enabled bool", "enabled", false, nil},
		{"enabled string", "enabled", "false", ErrInvalidValue},
		{"wrong type for string", "problem", 42.0, ErrInvalidValue},
		{"unknown", "color", "red", ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewForm()
			before := f.Clone()

			err := f.SetField(tt.field, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetField(%s, %v) error = %v, want %v", tt.field, tt.value, err, tt.wantErr)
			}
			if err != nil && (f.RuleName != before.RuleName || f.Priority != before.Priority ||
				f.MainAction != before.MainAction || f.Enabled != before.Enabled) {
				t.Error("form changed after a rejected edit")
			}
		})
	}
}

// TestApplyPatch_IsAtomic verifies a bad field rolls back the whole patch
func TestApplyPatch_IsAtomic(t *testing.T) {
	f := NewForm()

	err := f.ApplyPatch(map[string]any{
		"ruleName":      "Новое имя",
		"conditionMode": "sometimes",
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("ApplyPatch() error = %v, want ErrInvalidValue", err)
	}
	if f.RuleName != "" {
		t.Errorf("RuleName = %q after rejected patch, want empty", f.RuleName)
	}

	if err := f.ApplyPatch(map[string]any{"ruleName": "Новое имя", "priority": float64(5)}); err != nil {
		t.Fatalf("ApplyPatch() failed: %v", err)
	}
	if f.RuleName != "Новое имя" || f.Priority != 5 {
		t.Errorf("patch not applied: %+v", f)
	}
}

// TestItems covers add, update and remove across all kinds
func TestItems(t *testing.T) {
	f := NewForm()

	condID, err := f.AddItem(KindConditions)
	if err != nil {
		t.Fatalf("AddItem() failed: %v", err)
	}
	if len(f.Conditions) != 2 {
		t.Fatalf("len(Conditions) = %d, want 2", len(f.Conditions))
	}

	if err := f.UpdateItem(KindConditions, condID, "field", "Данные.ПЗД"); err != nil {
		t.Fatalf("UpdateItem(field) failed: %v", err)
	}
	if err := f.UpdateItem(KindConditions, condID, "operator", OpDuplicate); err != nil {
		t.Fatalf("UpdateItem(operator) failed: %v", err)
	}
	if err := f.UpdateItem(KindConditions, condID, "operator", "like"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("bad operator error = %v, want ErrInvalidValue", err)
	}
	if f.Conditions[1].Field != "Данные.ПЗД" || f.Conditions[1].Operator != OpDuplicate {
		t.Errorf("condition = %+v", f.Conditions[1])
	}

	mergeID, _ := f.AddItem(KindMergeFields)
	if f.MergeFields[0].Strategy != "first_not_empty" {
		t.Errorf("new merge strategy = %q, want first_not_empty", f.MergeFields[0].Strategy)
	}
	if err := f.UpdateItem(KindMergeFields, mergeID, "strategy", "bogus"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("bad strategy error = %v, want ErrInvalidValue", err)
	}
	if err := f.UpdateItem(KindValidationChecks, f.ValidationChecks[0].ID, "action", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("wrong property error = %v, want ErrUnknownField", err)
	}
	if err := f.UpdateItem(KindDataPreparation, "missing", "action", "x"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("missing item error = %v, want ErrItemNotFound", err)
	}

	if err := f.RemoveItem(KindConditions, condID); err != nil {
		t.Fatalf("RemoveItem() failed: %v", err)
	}
	if len(f.Conditions) != 1 {
		t.Errorf("len(Conditions) = %d after remove, want 1", len(f.Conditions))
	}
	if err := f.RemoveItem(KindConditions, condID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("second RemoveItem() error = %v, want ErrItemNotFound", err)
	}

	if _, err := f.AddItem("widgets"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("AddItem(widgets) error = %v, want ErrUnknownKind", err)
	}
}

// TestClone_Independent verifies clones do not share list storage
func TestClone_Independent(t *testing.T) {
	f := NewForm()
	c := f.Clone()
	c.Conditions[0].Field = "changed"

	if f.Conditions[0].Field == "changed" {
		t.Error("Clone shares condition storage with the original")
	}
}
