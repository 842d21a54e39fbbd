package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/rules"
)

// Workspace is the state of one editing session: the loaded files, the form
// and the last generated rule. All form edits go through it.
type Workspace struct {
	ID        string
	CreatedAt time.Time

	files    *catalog.Set
	form     rules.FormState
	compiler *rules.Compiler
	lastRule *rules.RuleDocument
	lastUsed time.Time
	mu       sync.Mutex
}

// Summary describes a workspace in listings
type Summary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsed   time.Time `json:"lastUsed"`
	RuleName   string    `json:"ruleName"`
	Files      int       `json:"files"`
	LastRuleID string    `json:"lastRuleId,omitempty"`
}

func newWorkspace(now time.Time, clock func() time.Time) *Workspace {
	return &Workspace{
		ID:        uuid.NewString(),
		CreatedAt: now,
		files:     catalog.NewSet(),
		form:      rules.NewForm(),
		compiler:  rules.NewCompiler().WithClock(clock),
		lastUsed:  now,
	}
}

// Files returns the loaded file set
func (w *Workspace) Files() *catalog.Set {
	return w.files
}

// Catalog returns the field catalog of the selected sheets
func (w *Workspace) Catalog() *catalog.Catalog {
	return w.files.Catalog()
}

// Form returns a copy of the current form
func (w *Workspace) Form() rules.FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form.Clone()
}

// Edit applies fn to a copy of the form and keeps the result only when fn
// succeeds, so a rejected edit leaves the form unchanged.
func (w *Workspace) Edit(fn func(*rules.FormState) error) (rules.FormState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.form.Clone()
	if err := fn(&next); err != nil {
		return w.form.Clone(), err
	}
	w.form = next
	return w.form.Clone(), nil
}

// Reset restores the default form. Loaded files are kept.
func (w *Workspace) Reset() rules.FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = rules.NewForm()
	return w.form.Clone()
}

// LoadTemplate replaces the whole form with the template
func (w *Workspace) LoadTemplate(t rules.Template) rules.FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = rules.ApplyTemplate(t)
	return w.form.Clone()
}

// Generate compiles the form against the loaded files and keeps the
// document as the last rule
func (w *Workspace) Generate() *rules.RuleDocument {
	files := w.files.Files()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRule = w.compiler.Compile(w.form, files)
	return w.lastRule
}

// LastRule returns the most recently generated document
func (w *Workspace) LastRule() (*rules.RuleDocument, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRule, w.lastRule != nil
}

// Summary describes the workspace
func (w *Workspace) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Summary{
		ID:        w.ID,
		CreatedAt: w.CreatedAt,
		LastUsed:  w.lastUsed,
		RuleName:  w.form.RuleName,
		Files:     w.files.Len(),
	}
	if w.lastRule != nil {
		s.LastRuleID = w.lastRule.RuleID
	}
	return s
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastUsed = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastUsed)
}
