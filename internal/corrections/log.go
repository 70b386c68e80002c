// Package corrections keeps the append-only history of human-corrected
// extraction records. Entries feed future prompts as few-shot examples.
package corrections

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/docsift/docsift/internal/llm"
)

// DefaultExampleLimit bounds how many recent corrections are injected into a
// prompt when the caller does not ask for a specific window.
const DefaultExampleLimit = 2

// maxLineBytes bounds a single history line on load. Longer lines are skipped
// like undecodable ones; they never abort the load.
const maxLineBytes = 1 << 20

// Entry is one immutable correction record: the content hash of the source
// image and the record as the human left it.
type Entry struct {
	OriginalImageHash string            `json:"original_image_hash"`
	CorrectedData     llm.ExtractedData `json:"corrected_data"`
}

// Log is the append-only JSON-Lines store. The in-memory slice preserves
// insertion order; the backing file grows monotonically, one record per line.
type Log struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	log     *slog.Logger
}

// Open loads the correction log from path. A missing file is an empty log; a
// line that fails to decode is skipped rather than failing the load, so one
// bad historical line never blocks future learning.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{path: path, log: logger}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("open correction log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("corrections.open.close_error", "path", path, "error", cerr)
		}
	}()

	r := bufio.NewReader(f)
	line := 0
	for {
		raw, rerr := r.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			if len(raw) > maxLineBytes {
				logger.Debug("corrections.open.skip_long_line", "path", path, "line", line, "bytes", len(raw))
			} else if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
				var e Entry
				if err := json.Unmarshal([]byte(trimmed), &e); err != nil {
					logger.Debug("corrections.open.skip_bad_line", "path", path, "line", line, "error", err)
				} else {
					l.entries = append(l.entries, e)
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("read correction log: %w", rerr)
		}
	}
	logger.Debug("corrections.open.ok", "path", path, "entries", len(l.entries))
	return l, nil
}

// Len returns the number of loaded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the full history in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Append records one correction. The hash is computed by the caller over the
// raw bytes of the originally loaded image, not the re-encoded upload payload.
// The file is created on first append.
func (l *Log) Append(imageHash string, corrected llm.ExtractedData) error {
	entry := Entry{OriginalImageHash: imageHash, CorrectedData: corrected}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode correction: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open correction log for append: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append correction: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close correction log: %w", err)
	}

	l.entries = append(l.entries, entry)
	l.log.Info("corrections.append.ok", "path", l.path, "image_hash", imageHash, "entries", len(l.entries))
	return nil
}

// Recent returns the last limit entries in insertion order (a plain suffix of
// the history, oldest of the window first). limit <= 0 uses the default.
func (l *Log) Recent(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultExampleLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Entry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// RecentExamples renders the last limit corrections as prompt-ready text:
// one descriptive paragraph per correction, blank-line separated. Returns ""
// when the log is empty.
func (l *Log) RecentExamples(limit int) string {
	entries := l.Recent(limit)
	if len(entries) == 0 {
		return ""
	}
	paras := make([]string, 0, len(entries))
	for i, e := range entries {
		paras = append(paras, formatExample(i+1, e.CorrectedData))
	}
	return strings.Join(paras, "\n\n")
}

func formatExample(n int, d llm.ExtractedData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Example %d (human-corrected):\n", n)
	writeField(&b, "date", d.Date)
	writeField(&b, "contact", d.Contact)
	writeField(&b, "description", d.Description)
	writeField(&b, "document_type", d.DocumentType)
	writeField(&b, "document_subtype", d.DocumentSubtype)
	writeField(&b, "category", d.Category)
	writeField(&b, "subcategory", d.Subcategory)
	return strings.TrimRight(b.String(), "\n")
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", name, value)
}
