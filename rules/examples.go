package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrExampleNotFound is returned for an unknown example ID
var ErrExampleNotFound = errors.New("example not found")

// Example is one entry of the example gallery
type Example struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Template    Template `json:"template" yaml:"template"`
}

//go:embed examples.yaml
var examplesYAML []byte

var (
	examplesOnce sync.Once
	examples     []Example
	examplesErr  error
)

func loadExamples() ([]Example, error) {
	examplesOnce.Do(func() {
		if err := yaml.Unmarshal(examplesYAML, &examples); err != nil {
			examplesErr = fmt.Errorf("failed to parse example gallery: %w", err)
		}
	})
	return examples, examplesErr
}

// Examples returns the example gallery in display order
func Examples() ([]Example, error) {
	list, err := loadExamples()
	if err != nil {
		return nil, err
	}
	return append([]Example{}, list...), nil
}

// LookupExample returns the template of one example
func LookupExample(id string) (Example, error) {
	list, err := loadExamples()
	if err != nil {
		return Example{}, err
	}
	for _, ex := range list {
		if ex.ID == id {
			return ex, nil
		}
	}
	return Example{}, fmt.Errorf("%w: %s", ErrExampleNotFound, id)
}
