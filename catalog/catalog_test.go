package catalog

import (
	"errors"
	"strings"
	"testing"
)

func newSheet(name string, selected bool, fields ...string) *Sheet {
	desc := make(map[string]string)
	for _, f := range fields {
		desc[f] = "Пример: " + f + "_1"
	}
	return &Sheet{Name: name, Fields: fields, Descriptions: desc, Selected: selected}
}

// TestBuild_EmptyInput verifies that no files yields an empty catalog
func TestBuild_EmptyInput(t *testing.T) {
	for _, files := range [][]*File{nil, {}, {nil}} {
		c := Build(files)
		if c.Len() != 0 {
			t.Errorf("Build(%v) has %d entries, want 0", files, c.Len())
		}
		if refs := c.References(); len(refs) != 0 {
			t.Errorf("References() = %v, want empty", refs)
		}
	}
}

// TestBuild_OnlySelectedSheets verifies unselected sheets are excluded
func TestBuild_OnlySelectedSheets(t *testing.T) {
	files := []*File{
		{
			Name: "equipment.xlsx",
			Sheets: []*Sheet{
				{Name: "Лист1", Alias: "Данные", Selected: true, Fields: []string{"ПЗД", "Дата_прихода"},
					Descriptions: map[string]string{"ПЗД": "Пример: 123"}},
				{Name: "Лист2", Alias: "Архив", Selected: false, Fields: []string{"Старое"}},
			},
		},
	}

	c := Build(files)

	want := []string{"Данные.ПЗД", "Данные.Дата_прихода"}
	got := c.References()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("References() = %v, want %v", got, want)
	}

	if c.Has("Архив.Старое") {
		t.Error("Catalog should not contain fields of unselected sheets")
	}

	e, ok := c.Lookup("Данные.ПЗД")
	if !ok {
		t.Fatal("Lookup(Данные.ПЗД) not found")
	}
	if e.File != "equipment.xlsx" || e.Sheet != "Лист1" || e.Alias != "Данные" || e.OriginalField != "ПЗД" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Description != "Пример: 123" {
		t.Errorf("Description = %q, want %q", e.Description, "Пример: 123")
	}
}

// TestBuild_Deterministic verifies repeated builds give the same order
func TestBuild_Deterministic(t *testing.T) {
	files := []*File{
		{Name: "a.xlsx", Sheets: []*Sheet{newSheet("S", true, "x", "y", "z")}},
		{Name: "b.xlsx", Sheets: []*Sheet{newSheet("S", true, "p", "q")}},
	}
	files[0].Sheets[0].Alias = "A"
	files[1].Sheets[0].Alias = "B"

	first := strings.Join(Build(files).References(), ",")
	for i := 0; i < 10; i++ {
		if got := strings.Join(Build(files).References(), ","); got != first {
			t.Fatalf("build %d = %s, want %s", i, got, first)
		}
	}
}

// TestSet_AddGeneratesAliases verifies alias generation and collision suffixes
func TestSet_AddGeneratesAliases(t *testing.T) {
	s := NewSet()

	f1 := s.Add(&File{Name: "Данные УЭЦН (2024).xlsx", Sheets: []*Sheet{newSheet("Sheet1", true, "ПЗД")}})
	if f1.Alias != "Данные_УЭЦН_2024" {
		t.Errorf("Alias = %q, want %q", f1.Alias, "Данные_УЭЦН_2024")
	}
	if f1.Sheets[0].Alias != f1.Alias {
		t.Errorf("single sheet alias = %q, want file alias %q", f1.Sheets[0].Alias, f1.Alias)
	}
	if f1.ID == "" {
		t.Error("Add should assign an ID")
	}

	f2 := s.Add(&File{Name: "Данные УЭЦН (2024).xlsx", Sheets: []*Sheet{newSheet("Sheet1", true, "ПЗД")}})
	if f2.Alias != "Данные_УЭЦН_20242" {
		t.Errorf("second alias = %q, want %q", f2.Alias, "Данные_УЭЦН_20242")
	}

	f3 := s.Add(&File{Name: "price.xlsx", Sheets: []*Sheet{
		newSheet("Основной", true, "Цена"),
		newSheet("Со скидкой", false, "Цена"),
	}})
	if !f3.MultiSheet {
		t.Error("file with two sheets should be multi-sheet")
	}
	if f3.Sheets[1].Alias != "price_Со_скидкой" {
		t.Errorf("sheet alias = %q, want %q", f3.Sheets[1].Alias, "price_Со_скидкой")
	}
}

// TestSet_RenameSheetAlias_RejectsDuplicates verifies alias uniqueness on edit
func TestSet_RenameSheetAlias_RejectsDuplicates(t *testing.T) {
	s := NewSet()
	a := s.Add(&File{Name: "a.xlsx", Sheets: []*Sheet{newSheet("S1", true, "x"), newSheet("S2", true, "y")}})
	b := s.Add(&File{Name: "b.xlsx", Sheets: []*Sheet{newSheet("S", true, "z")}})

	tests := []struct {
		name    string
		alias   string
		wantErr error
	}{
		{"other file alias", b.Alias, ErrDuplicateAlias},
		{"sibling sheet alias", a.Sheets[1].Alias, ErrDuplicateAlias},
		{"empty", "   ", ErrEmptyAlias},
		{"dot", "bad.alias", ErrInvalidAlias},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RenameSheetAlias(a.ID, "S1", tt.alias)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RenameSheetAlias(%q) error = %v, want %v", tt.alias, err, tt.wantErr)
			}

			f, _ := s.Get(a.ID)
			if f.Sheets[0].Alias != a.Sheets[0].Alias {
				t.Errorf("alias changed to %q after rejected edit", f.Sheets[0].Alias)
			}
		})
	}

	if err := s.RenameSheetAlias(a.ID, "S1", "  Основа "); err != nil {
		t.Fatalf("valid rename failed: %v", err)
	}
	f, _ := s.Get(a.ID)
	if f.Sheets[0].Alias != "Основа" {
		t.Errorf("alias = %q, want trimmed %q", f.Sheets[0].Alias, "Основа")
	}
}

// TestSet_RenameFileAlias_Cascades verifies sheet aliases follow the file alias
func TestSet_RenameFileAlias_Cascades(t *testing.T) {
	s := NewSet()
	multi := s.Add(&File{Name: "price.xlsx", Sheets: []*Sheet{newSheet("A", true, "x"), newSheet("B", true, "y")}})
	single := s.Add(&File{Name: "ref.xlsx", Sheets: []*Sheet{newSheet("S", true, "z")}})

	if err := s.RenameFileAlias(multi.ID, "Прайс"); err != nil {
		t.Fatalf("RenameFileAlias failed: %v", err)
	}
	f, _ := s.Get(multi.ID)
	if f.Sheets[0].Alias != "Прайс_A" || f.Sheets[1].Alias != "Прайс_B" {
		t.Errorf("sheet aliases = %q, %q; want Прайс_A, Прайс_B", f.Sheets[0].Alias, f.Sheets[1].Alias)
	}

	if err := s.RenameFileAlias(single.ID, "Справочник"); err != nil {
		t.Fatalf("RenameFileAlias failed: %v", err)
	}
	f, _ = s.Get(single.ID)
	if f.Sheets[0].Alias != "Справочник" {
		t.Errorf("single sheet alias = %q, want Справочник", f.Sheets[0].Alias)
	}

	err := s.RenameFileAlias(single.ID, "Прайс_A")
	if !errors.Is(err, ErrDuplicateAlias) {
		t.Errorf("rename to another file's sheet alias: error = %v, want ErrDuplicateAlias", err)
	}
	f, _ = s.Get(single.ID)
	if f.Alias != "Справочник" {
		t.Errorf("alias = %q after rejected edit, want Справочник", f.Alias)
	}
}

// TestSet_RenameFileAlias_RejectsCascadeCollision verifies a file alias edit is
// rejected when a derived sheet alias belongs to another file
func TestSet_RenameFileAlias_RejectsCascadeCollision(t *testing.T) {
	s := NewSet()
	price := s.Add(&File{Name: "Прайс.xlsx", Sheets: []*Sheet{
		newSheet("X", true, "Цена"),
		newSheet("Y", true, "Цена"),
	}})
	other := s.Add(&File{Name: "other.xlsx", Sheets: []*Sheet{newSheet("S", true, "Артикул")}})

	if err := s.RenameFileAlias(other.ID, "C_X"); err != nil {
		t.Fatalf("RenameFileAlias(other) failed: %v", err)
	}

	err := s.RenameFileAlias(price.ID, "C")
	if !errors.Is(err, ErrDuplicateAlias) {
		t.Fatalf("RenameFileAlias(price) error = %v, want ErrDuplicateAlias", err)
	}

	f, _ := s.Get(price.ID)
	if f.Alias != "Прайс" || f.Sheets[0].Alias != "Прайс_X" || f.Sheets[1].Alias != "Прайс_Y" {
		t.Errorf("aliases changed after rejected edit: %q %q %q", f.Alias, f.Sheets[0].Alias, f.Sheets[1].Alias)
	}

	want := []string{"Прайс_X.Цена", "Прайс_Y.Цена", "C_X.Артикул"}
	if got := s.Catalog().References(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("References() = %v, want %v", got, want)
	}
}

// TestSet_AddAvoidsSheetAliases verifies generated aliases never reuse a sheet
// alias, in either upload order
func TestSet_AddAvoidsSheetAliases(t *testing.T) {
	s := NewSet()
	multi := s.Add(&File{Name: "data.xlsx", Sheets: []*Sheet{
		newSheet("Sheet1", true, "a"),
		newSheet("Sheet2", true, "a"),
	}})
	single := s.Add(&File{Name: "data_Sheet1.xlsx", Sheets: []*Sheet{newSheet("Sheet1", true, "a")}})

	if single.Alias == multi.Sheets[0].Alias {
		t.Fatalf("single-sheet alias %q reuses a sheet alias", single.Alias)
	}
	if got := s.Catalog().Len(); got != 3 {
		t.Errorf("catalog has %d entries, want 3", got)
	}

	s = NewSet()
	first := s.Add(&File{Name: "report_Итог.xlsx", Sheets: []*Sheet{newSheet("Лист", true, "Сумма")}})
	second := s.Add(&File{Name: "report.xlsx", Sheets: []*Sheet{
		newSheet("Итог", true, "Сумма"),
		newSheet("Детали", true, "Сумма"),
	}})

	if first.Alias != "report_Итог" {
		t.Fatalf("first alias = %q, want report_Итог", first.Alias)
	}
	if second.Alias != "report2" || second.Sheets[0].Alias != "report2_Итог" {
		t.Errorf("second aliases = %q, %q; want report2, report2_Итог", second.Alias, second.Sheets[0].Alias)
	}
	if got := s.Catalog().Len(); got != 3 {
		t.Errorf("catalog has %d entries, want 3", got)
	}
}

// TestSet_SheetSelection verifies toggling and select all/none
func TestSet_SheetSelection(t *testing.T) {
	s := NewSet()
	f := s.Add(&File{Name: "p.xlsx", Sheets: []*Sheet{newSheet("A", true, "x"), newSheet("B", false, "y")}})

	if got := s.Catalog().Len(); got != 1 {
		t.Fatalf("catalog size = %d, want 1", got)
	}

	if err := s.ToggleSheet(f.ID, "B", true); err != nil {
		t.Fatalf("ToggleSheet failed: %v", err)
	}
	if got := s.Catalog().Len(); got != 2 {
		t.Errorf("catalog size after toggle = %d, want 2", got)
	}

	if err := s.SelectNone(f.ID); err != nil {
		t.Fatalf("SelectNone failed: %v", err)
	}
	if got := s.Catalog().Len(); got != 0 {
		t.Errorf("catalog size after SelectNone = %d, want 0", got)
	}

	if err := s.SelectAll(f.ID); err != nil {
		t.Fatalf("SelectAll failed: %v", err)
	}
	if got := s.Catalog().Len(); got != 2 {
		t.Errorf("catalog size after SelectAll = %d, want 2", got)
	}

	if err := s.ToggleSheet(f.ID, "missing", true); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("ToggleSheet(missing) error = %v, want ErrSheetNotFound", err)
	}
	if err := s.ToggleSheet("nope", "A", true); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ToggleSheet(unknown file) error = %v, want ErrFileNotFound", err)
	}
}

// TestSet_Remove verifies removing files and unknown IDs
func TestSet_Remove(t *testing.T) {
	s := NewSet()
	f := s.Add(&File{Name: "a.xlsx", Sheets: []*Sheet{newSheet("S", true, "x")}})

	if err := s.Remove(f.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", s.Len())
	}
	if err := s.Remove(f.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Remove error = %v, want ErrFileNotFound", err)
	}
}

// TestSet_SnapshotsAreIndependent verifies callers cannot mutate the set
func TestSet_SnapshotsAreIndependent(t *testing.T) {
	s := NewSet()
	f := s.Add(&File{Name: "a.xlsx", Sheets: []*Sheet{newSheet("S", true, "x")}})

	snap, _ := s.Get(f.ID)
	snap.Sheets[0].Alias = "mutated"
	snap.Sheets[0].Fields[0] = "mutated"

	again, _ := s.Get(f.ID)
	if again.Sheets[0].Alias == "mutated" || again.Sheets[0].Fields[0] == "mutated" {
		t.Error("mutating a snapshot changed the set")
	}
}

// TestSet_Structure verifies the debug dump lists at most ten fields
func TestSet_Structure(t *testing.T) {
	s := NewSet()
	fields := make([]string, 12)
	for i := range fields {
		fields[i] = "F" + string(rune('A'+i))
	}
	f := s.Add(&File{Name: "big.xlsx", Sheets: []*Sheet{newSheet("S", true, fields...)}})

	out, err := s.Structure(f.ID)
	if err != nil {
		t.Fatalf("Structure failed: %v", err)
	}
	if !strings.Contains(out, "Полей: 12") {
		t.Errorf("structure missing field count:\n%s", out)
	}
	if !strings.Contains(out, "... и еще 2 полей") {
		t.Errorf("structure missing overflow line:\n%s", out)
	}
	if strings.Contains(out, "• FK") {
		t.Errorf("structure should stop after ten fields:\n%s", out)
	}
}
