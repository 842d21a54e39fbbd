package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Keys used by the editor
const (
	KeySimpleMode     = "simpleMode"
	KeyHistoricalData = "historicalData"
)

const maxKeyLength = 200

var (
	// ErrNotFound is returned for keys that have no stored value
	ErrNotFound = errors.New("preference not found")

	// ErrInvalidKey is returned for empty or oversized keys
	ErrInvalidKey = errors.New("invalid preference key")

	// ErrInvalidValue is returned when the value is not JSON
	ErrInvalidValue = errors.New("preference value must be valid JSON")
)

// Preference is one stored value. Values are opaque JSON documents.
type Preference struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store persists preferences
type Store interface {
	// Get returns the preference for key or ErrNotFound
	Get(ctx context.Context, key string) (*Preference, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key string, value json.RawMessage) (*Preference, error)

	// Delete removes key; missing keys return ErrNotFound
	Delete(ctx context.Context, key string) error

	// List returns all preferences ordered by key
	List(ctx context.Context) ([]*Preference, error)
}

// Validate checks a key and value before they are stored
func Validate(key string, value json.RawMessage) error {
	if strings.TrimSpace(key) == "" || utf8.RuneCountInString(key) > maxKeyLength {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(value) == 0 || !json.Valid(value) {
		return ErrInvalidValue
	}
	return nil
}

// InMemoryStore implements Store with a map
type InMemoryStore struct {
	prefs map[string]*Preference
	now   func() time.Time
	mu    sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		prefs: make(map[string]*Preference),
		now:   time.Now,
	}
}

// Get returns a copy of the stored preference
func (s *InMemoryStore) Get(ctx context.Context, key string) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return p.clone(), nil
}

// Set stores the value, preserving CreatedAt on replace
func (s *InMemoryStore) Set(ctx context.Context, key string, value json.RawMessage) (*Preference, error) {
	if err := Validate(key, value); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &Preference{Key: key, Value: append(json.RawMessage{}, value...), CreatedAt: now, UpdatedAt: now}
	if existing, ok := s.prefs[key]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.prefs[key] = p
	return p.clone(), nil
}

// Delete removes a preference
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prefs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.prefs, key)
	return nil
}

// List returns copies ordered by key
func (s *InMemoryStore) List(ctx context.Context) ([]*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Preference, 0, len(s.prefs))
	for _, p := range s.prefs {
		list = append(list, p.clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func (p *Preference) clone() *Preference {
	c := *p
	c.Value = append(json.RawMessage{}, p.Value...)
	return &c
}
