package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/rules"
)

type fakeClock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// TestManager_Lifecycle covers create, get, list and delete
func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(time.Hour)

	a := m.Create()
	b := m.Create()
	if a.ID == b.ID {
		t.Fatal("session IDs should be unique")
	}

	got, err := m.Get(a.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != a {
		t.Error("Get() returned a different workspace")
	}

	if list := m.List(); len(list) != 2 {
		t.Errorf("List() = %d sessions, want 2", len(list))
	}

	if err := m.Delete(a.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := m.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

// TestManager_Sweep verifies only idle sessions are removed
func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(30 * time.Minute).WithClock(clock.Now)

	idle := m.Create()
	active := m.Create()

	clock.Advance(20 * time.Minute)
	if _, err := m.Get(active.ID); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	clock.Advance(15 * time.Minute)

	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
	if _, err := m.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Error("idle session should be gone")
	}
	if _, err := m.Get(active.ID); err != nil {
		t.Error("active session should remain")
	}

	if NewManager(0).Sweep() != 0 {
		t.Error("zero TTL should disable expiry")
	}
}

// TestManager_Run stops with its context
func TestManager_Run(t *testing.T) {
	m := NewManager(time.Nanosecond)
	m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for m.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("session was not swept")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

// TestWorkspace_Edit verifies rejected edits leave the form unchanged
func TestWorkspace_Edit(t *testing.T) {
	ws := NewManager(0).Create()

	form, err := ws.Edit(func(f *rules.FormState) error {
		if err := f.SetField("ruleName", "Даты"); err != nil {
			return err
		}
		return f.SetField("mainAction", "explode")
	})
	if !errors.Is(err, rules.ErrInvalidValue) {
		t.Fatalf("Edit() error = %v, want ErrInvalidValue", err)
	}
	if form.RuleName != "" || ws.Form().RuleName != "" {
		t.Error("rejected edit changed the form")
	}

	if _, err := ws.Edit(func(f *rules.FormState) error { return f.SetField("ruleName", "Даты") }); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if ws.Form().RuleName != "Даты" {
		t.Error("accepted edit was not kept")
	}

	snapshot := ws.Form()
	snapshot.RuleName = "changed outside"
	if ws.Form().RuleName != "Даты" {
		t.Error("Form() should return a copy")
	}
}

// TestWorkspace_Generate verifies per-session sequence IDs and file use
func TestWorkspace_Generate(t *testing.T) {
	m := NewManager(0)
	ws := m.Create()
	other := m.Create()

	ws.Files().Add(&catalog.File{
		Name: "Данные.xlsx",
		Sheets: []*catalog.Sheet{{
			Name:     "Лист1",
			Fields:   []string{"ПЗД"},
			Selected: true,
		}},
	})

	if _, ok := ws.LastRule(); ok {
		t.Error("fresh workspace should have no rule")
	}

	first := ws.Generate()
	second := ws.Generate()
	if first.RuleID != "RULE001" || second.RuleID != "RULE002" {
		t.Errorf("rule IDs = %s, %s", first.RuleID, second.RuleID)
	}
	if other.Generate().RuleID != "RULE001" {
		t.Error("sequence should be per session")
	}

	if first.DataSources.Stats.FilesLoaded != 1 {
		t.Errorf("files loaded = %d, want 1", first.DataSources.Stats.FilesLoaded)
	}

	last, ok := ws.LastRule()
	if !ok || last.RuleID != "RULE002" {
		t.Errorf("LastRule() = %v, %v", last, ok)
	}
	if s := ws.Summary(); s.LastRuleID != "RULE002" || s.Files != 1 {
		t.Errorf("Summary() = %+v", s)
	}
}

// TestWorkspace_ResetAndTemplate verifies files survive form resets
func TestWorkspace_ResetAndTemplate(t *testing.T) {
	ws := NewManager(0).Create()
	ws.Files().Add(&catalog.File{Name: "a.xlsx", Sheets: []*catalog.Sheet{{Name: "S", Fields: []string{"x"}, Selected: true}}})

	f := ws.LoadTemplate(rules.Template{RuleName: "Из шаблона", Priority: 10})
	if f.RuleName != "Из шаблона" || f.Priority != 10 {
		t.Errorf("LoadTemplate() = %+v", f)
	}

	f = ws.Reset()
	if f.RuleName != "" || f.Priority != rules.DefaultPriority {
		t.Errorf("Reset() = %+v", f)
	}
	if ws.Files().Len() != 1 || ws.Catalog().Len() != 1 {
		t.Error("Reset() should keep loaded files")
	}
}

// TestWorkspace_ConcurrentEdits exercises the form lock
func TestWorkspace_ConcurrentEdits(t *testing.T) {
	ws := NewManager(0).Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws.Edit(func(f *rules.FormState) error {
				_, err := f.AddItem(rules.KindConditions)
				return err
			})
			ws.Generate()
		}()
	}
	wg.Wait()

	if got := len(ws.Form().Conditions); got != 51 {
		t.Errorf("len(Conditions) = %d, want 51", got)
	}
}
