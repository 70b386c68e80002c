// Package taxonomy manages the flat two-level hierarchy lists used for
// document type and category selection. Each entry is either a bare parent
// ("Invoice") or a parent*child pair ("Invoice*Utilities"); the backing file
// is newline-delimited UTF-8 text, one entry per line.
package taxonomy

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Separator splits a taxonomy entry into its parent and child tokens.
const Separator = "*"

// Store owns one taxonomy list and its backing file. Mutations are
// serialized; the whole list is re-sorted, deduplicated, and rewritten
// atomically on every Add.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []string
	log     *slog.Logger
}

// Load reads the list from path. Blank lines are dropped; the in-memory list
// is sorted and deduplicated on load so queries see a canonical view.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy list: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("taxonomy.load.close_error", "path", path, "error", cerr)
		}
	}()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read taxonomy list: %w", err)
	}

	s := &Store{path: path, entries: entries, log: logger}
	s.normalizeLocked()
	logger.Debug("taxonomy.load.ok", "path", path, "entries", len(s.entries))
	return s, nil
}

// Entries returns a copy of the full sorted list.
func (s *Store) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// MainEntries returns the distinct parent tokens, sorted ascending.
func (s *Store) MainEntries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.entries))
	var mains []string
	for _, e := range s.entries {
		parent, _, _ := strings.Cut(e, Separator)
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		mains = append(mains, parent)
	}
	sort.Strings(mains)
	return mains
}

// SubEntries returns the child tokens of entries whose parent token exactly
// equals parent. Bare parents never appear as subentries. The result inherits
// the order of the full-string sort.
func (s *Store) SubEntries(parent string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []string
	for _, e := range s.entries {
		p, child, found := strings.Cut(e, Separator)
		if !found || p != parent {
			continue
		}
		subs = append(subs, child)
	}
	return subs
}

// Add appends entry to the list and persists it. Empty (trimmed) input is a
// no-op. The list stays sorted and duplicate-free.
func (s *Store) Add(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.normalizeLocked()
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.log.Debug("taxonomy.add.ok", "path", s.path, "entry", entry, "entries", len(s.entries))
	return nil
}

// normalizeLocked sorts lexically on the full Parent*Child string and drops
// duplicates. Callers must hold s.mu.
func (s *Store) normalizeLocked() {
	sort.Strings(s.entries)
	out := s.entries[:0]
	var prev string
	for i, e := range s.entries {
		if i > 0 && e == prev {
			continue
		}
		out = append(out, e)
		prev = e
	}
	s.entries = out
}

// persistLocked rewrites the backing file atomically (temp file + rename).
// Callers must hold s.mu.
func (s *Store) persistLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".taxonomy-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, e := range s.entries {
		if _, err := w.WriteString(e + "\n"); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return fmt.Errorf("write taxonomy list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("flush taxonomy list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace taxonomy list: %w", err)
	}
	return nil
}
