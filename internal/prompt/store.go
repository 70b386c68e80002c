package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TemplateStore owns the prompt template file. The template is mutable by an
// external editor and persisted to disk on save.
type TemplateStore struct {
	mu   sync.RWMutex
	path string
	text string
}

// LoadTemplate reads the template from path.
func LoadTemplate(path string) (*TemplateStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	return &TemplateStore{path: path, text: string(b)}, nil
}

// Text returns the current template text.
func (s *TemplateStore) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Save replaces the template and persists it atomically.
func (s *TemplateStore) Save(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prompt-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write prompt template: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace prompt template: %w", err)
	}
	s.text = text
	return nil
}
