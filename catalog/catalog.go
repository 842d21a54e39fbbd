package catalog

// Sheet is a single sheet of a spreadsheet or a single table of a database export
type Sheet struct {
	Name         string            `json:"name"`
	Alias        string            `json:"alias"`
	Fields       []string          `json:"fields"`
	Descriptions map[string]string `json:"descriptions"`
	Selected     bool              `json:"selected"`
	Index        int               `json:"originalIndex"`
	RowCount     int               `json:"rowCount,omitempty"`
	FromDatabase bool              `json:"isMdbTable,omitempty"`
}

// FieldCount returns the number of fields in the sheet
func (s *Sheet) FieldCount() int {
	return len(s.Fields)
}

// Description returns the human-readable description of a field,
// falling back to the field name itself
func (s *Sheet) Description(field string) string {
	if d, ok := s.Descriptions[field]; ok && d != "" {
		return d
	}
	return field
}

// File is an uploaded tabular source with one or more sheets
type File struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Alias        string   `json:"alias"`
	Sheets       []*Sheet `json:"sheets"`
	MultiSheet   bool     `json:"hasMultipleSheets"`
	FromDatabase bool     `json:"isMdbFile,omitempty"`
}

// Sheet returns the sheet with the given name, or nil
func (f *File) Sheet(name string) *Sheet {
	for _, s := range f.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// TotalFields counts fields across all sheets, selected or not
func (f *File) TotalFields() int {
	total := 0
	for _, s := range f.Sheets {
		total += s.FieldCount()
	}
	return total
}

// SelectedSheets returns the selected sheets in their original order
func (f *File) SelectedSheets() []*Sheet {
	var selected []*Sheet
	for _, s := range f.Sheets {
		if s.Selected {
			selected = append(selected, s)
		}
	}
	return selected
}

// Entry describes one field reference available to rule authors
type Entry struct {
	Description   string `json:"description"`
	File          string `json:"file"`
	Sheet         string `json:"sheet"`
	Alias         string `json:"alias"`
	OriginalField string `json:"originalField"`
}

// Catalog maps "alias.field" references to their provenance.
// refs keeps the build order so listings stay stable.
type Catalog struct {
	entries map[string]Entry
	refs    []string
}

// Build flattens the selected sheets of files into a catalog.
// Absent or empty input yields an empty catalog.
func Build(files []*File) *Catalog {
	c := &Catalog{entries: make(map[string]Entry)}

	for _, f := range files {
		if f == nil {
			continue
		}
		for _, s := range f.Sheets {
			if !s.Selected {
				continue
			}
			for _, field := range s.Fields {
				ref := Reference(s.Alias, field)
				if _, seen := c.entries[ref]; !seen {
					c.refs = append(c.refs, ref)
				}
				c.entries[ref] = Entry{
					Description:   s.Descriptions[field],
					File:          f.Name,
					Sheet:         s.Name,
					Alias:         s.Alias,
					OriginalField: field,
				}
			}
		}
	}

	return c
}

// Reference joins an alias and a field name
func Reference(alias, field string) string {
	return alias + "." + field
}

// Lookup returns the entry for a reference
func (c *Catalog) Lookup(ref string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[ref]
	return e, ok
}

// Has reports whether the reference exists in the catalog
func (c *Catalog) Has(ref string) bool {
	_, ok := c.Lookup(ref)
	return ok
}

// References returns all references in file, sheet, field order
func (c *Catalog) References() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, len(c.refs))
	copy(out, c.refs)
	return out
}

// Entries returns a copy of the reference -> entry mapping
func (c *Catalog) Entries() map[string]Entry {
	out := make(map[string]Entry)
	if c == nil {
		return out
	}
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of references
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.refs)
}
