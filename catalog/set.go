package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrFileNotFound is returned when a file ID is not in the set
	ErrFileNotFound = errors.New("file not found")

	// ErrSheetNotFound is returned when a sheet name is not in the file
	ErrSheetNotFound = errors.New("sheet not found")
)

// Set holds the loaded files of one workspace.
// Files are kept in the order they were added, which for concurrent uploads
// is completion order.
type Set struct {
	files []*File
	mu    sync.RWMutex
}

// NewSet creates an empty file set
func NewSet() *Set {
	return &Set{}
}

// Add registers a parsed file, assigning its ID and aliases.
// Sheet aliases are derived from the file alias: the alias itself for a
// single-sheet file, alias_<sheet> otherwise. The file alias is chosen so that
// neither it nor any derived sheet alias is already in use.
func (s *Set) Add(f *File) *File {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.MultiSheet = len(f.Sheets) > 1
	f.Alias = s.generateAliasLocked(f.Name, f.Sheets)

	used := make(map[string]bool, len(f.Sheets))
	for _, sheet := range f.Sheets {
		alias := derivedSheetAlias(f.Alias, sheet.Name, f.MultiSheet)
		// two sheet names can sanitize to the same alias
		for base, counter := alias, 2; used[alias] || s.aliasInUseLocked(alias, nil); counter++ {
			alias = fmt.Sprintf("%s%d", base, counter)
		}
		used[alias] = true
		sheet.Alias = alias

		if sheet.Descriptions == nil {
			sheet.Descriptions = make(map[string]string)
		}
	}

	s.files = append(s.files, f)
	return f.Clone()
}

// Files returns snapshots of all files in insertion order
func (s *Set) Files() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f.Clone())
	}
	return out
}

// Len returns the number of loaded files
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Get returns a snapshot of one file
func (s *Set) Get(fileID string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.findLocked(fileID)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return f.Clone(), nil
}

// Remove drops a file from the set
func (s *Set) Remove(fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.ID == fileID {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
}

// ToggleSheet marks one sheet as selected or excluded
func (s *Set) ToggleSheet(fileID, sheetName string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, err := s.sheetLocked(fileID, sheetName)
	if err != nil {
		return err
	}
	sheet.Selected = selected
	return nil
}

// SelectAll selects every sheet of a file
func (s *Set) SelectAll(fileID string) error {
	return s.selectEvery(fileID, true)
}

// SelectNone excludes every sheet of a file
func (s *Set) SelectNone(fileID string) error {
	return s.selectEvery(fileID, false)
}

func (s *Set) selectEvery(fileID string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findLocked(fileID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	for _, sheet := range f.Sheets {
		sheet.Selected = selected
	}
	return nil
}

// RenameSheetAlias changes the alias of one sheet.
// The edit is rejected, leaving the prior alias in place, when the alias is
// empty or already used by any other sheet or file.
func (s *Set) RenameSheetAlias(fileID, sheetName, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, err := s.sheetLocked(fileID, sheetName)
	if err != nil {
		return err
	}

	alias = strings.TrimSpace(alias)
	if err := ValidateAlias(alias); err != nil {
		return err
	}

	for _, f := range s.files {
		if f.ID != fileID && f.Alias == alias {
			return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
		}
		for _, other := range f.Sheets {
			if other == sheet {
				continue
			}
			if other.Alias == alias {
				return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
			}
		}
	}

	sheet.Alias = alias
	return nil
}

// RenameFileAlias changes the primary alias of a file and carries the change
// over to its sheets: prefixed sheet aliases for multi-sheet files, the single
// sheet alias otherwise.
func (s *Set) RenameFileAlias(fileID, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findLocked(fileID)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}

	alias = strings.TrimSpace(alias)
	if err := ValidateAlias(alias); err != nil {
		return err
	}

	if s.aliasInUseLocked(alias, f) {
		return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
	}

	// every cascaded sheet alias is checked before anything changes
	old := f.Alias
	planned := make([]string, len(f.Sheets))
	seen := make(map[string]bool, len(f.Sheets))
	for i, sheet := range f.Sheets {
		planned[i] = sheet.Alias
		if f.MultiSheet {
			if strings.HasPrefix(sheet.Alias, old+"_") {
				planned[i] = alias + strings.TrimPrefix(sheet.Alias, old)
			}
		} else if sheet.Alias == old {
			planned[i] = alias
		}

		if seen[planned[i]] || s.aliasInUseLocked(planned[i], f) {
			return fmt.Errorf("%w: %q", ErrDuplicateAlias, planned[i])
		}
		seen[planned[i]] = true
	}

	f.Alias = alias
	for i, sheet := range f.Sheets {
		sheet.Alias = planned[i]
	}

	return nil
}

// GenerateAlias derives a unique alias from a file name against the current set
func (s *Set) GenerateAlias(fileName string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generateAliasLocked(fileName, nil)
}

func (s *Set) generateAliasLocked(fileName string, sheets []*Sheet) string {
	base := sanitize(stripExtension(fileName), true)
	if base == "" {
		base = "file"
	}

	alias := base
	for counter := 2; !s.aliasFreeLocked(alias, sheets); counter++ {
		alias = fmt.Sprintf("%s%d", base, counter)
	}
	return alias
}

// aliasFreeLocked reports whether a new file could take alias together with
// the sheet aliases derived from it
func (s *Set) aliasFreeLocked(alias string, sheets []*Sheet) bool {
	if s.aliasInUseLocked(alias, nil) {
		return false
	}
	if len(sheets) < 2 {
		return true
	}
	for _, sheet := range sheets {
		if s.aliasInUseLocked(derivedSheetAlias(alias, sheet.Name, true), nil) {
			return false
		}
	}
	return true
}

// aliasInUseLocked reports whether any file other than except, or any of its
// sheets, already carries alias
func (s *Set) aliasInUseLocked(alias string, except *File) bool {
	for _, f := range s.files {
		if f == except {
			continue
		}
		if f.Alias == alias {
			return true
		}
		for _, sheet := range f.Sheets {
			if sheet.Alias == alias {
				return true
			}
		}
	}
	return false
}

func derivedSheetAlias(fileAlias, sheetName string, multiSheet bool) string {
	if !multiSheet {
		return fileAlias
	}
	return fileAlias + "_" + sanitize(sheetName, false)
}

// Catalog builds the field catalog from the current selection
func (s *Set) Catalog() *Catalog {
	return Build(s.Files())
}

// Structure renders a human-readable dump of a file's sheets
func (s *Set) Structure(fileID string) (string, error) {
	f, err := s.Get(fileID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Структура файла: %s\n\n", f.Name)

	for _, sheet := range f.Sheets {
		fmt.Fprintf(&b, "Лист: %s\n", sheet.Name)
		fmt.Fprintf(&b, "   Алиас: %s\n", sheet.Alias)
		fmt.Fprintf(&b, "   Полей: %d\n", sheet.FieldCount())
		if sheet.Selected {
			b.WriteString("   Выбран: Да\n")
		} else {
			b.WriteString("   Выбран: Нет\n")
		}

		if len(sheet.Fields) > 0 {
			b.WriteString("   Поля:\n")
			for i, field := range sheet.Fields {
				if i == 10 {
					fmt.Fprintf(&b, "     ... и еще %d полей\n", len(sheet.Fields)-10)
					break
				}
				fmt.Fprintf(&b, "     • %s", field)
				if desc := sheet.Descriptions[field]; desc != "" && desc != field {
					fmt.Fprintf(&b, " (%s)", desc)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (s *Set) findLocked(fileID string) *File {
	for _, f := range s.files {
		if f.ID == fileID {
			return f
		}
	}
	return nil
}

func (s *Set) sheetLocked(fileID, sheetName string) (*Sheet, error) {
	f := s.findLocked(fileID)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	sheet := f.Sheet(sheetName)
	if sheet == nil {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetName)
	}
	return sheet, nil
}

// Clone returns a deep copy of the file
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	c := *f
	c.Sheets = make([]*Sheet, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		sc := *s
		sc.Fields = append([]string{}, s.Fields...)
		sc.Descriptions = make(map[string]string, len(s.Descriptions))
		for k, v := range s.Descriptions {
			sc.Descriptions[k] = v
		}
		c.Sheets = append(c.Sheets, &sc)
	}
	return &c
}
