package corrections

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/llm"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "corrections.jsonl")
}

func TestOpenMissingFileIsEmptyLog(t *testing.T) {
	l, err := Open(tempLogPath(t), nil)
	require.NoError(t, err)
	assert.Zero(t, l.Len())
	assert.Empty(t, l.RecentExamples(0))
}

func TestAppendAndRecent(t *testing.T) {
	path := tempLogPath(t)
	l, err := Open(path, nil)
	require.NoError(t, err)

	e1 := llm.ExtractedData{Date: "2024-01-01", Category: "Finance"}
	e2 := llm.ExtractedData{Date: "2024-02-02", Contact: "ACME"}
	require.NoError(t, l.Append("hash-1", e1))
	require.NoError(t, l.Append("hash-2", e2))

	recent := l.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "hash-2", recent[0].OriginalImageHash)
	assert.Equal(t, e2, recent[0].CorrectedData)

	both := l.Recent(5)
	require.Len(t, both, 2)
	assert.Equal(t, "hash-1", both[0].OriginalImageHash)
	assert.Equal(t, "hash-2", both[1].OriginalImageHash)
}

func TestReloadRoundTrip(t *testing.T) {
	path := tempLogPath(t)
	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append("h", llm.ExtractedData{DocumentType: "Invoice", DocumentSubtype: "Utilities"}))

	reloaded, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "Invoice", reloaded.Entries()[0].CorrectedData.DocumentType)
}

func TestCorruptedMiddleLineIsSkipped(t *testing.T) {
	path := tempLogPath(t)
	lines := strings.Join([]string{
		`{"original_image_hash":"h1","corrected_data":{"date":"2024-01-01"}}`,
		`{not json at all`,
		`{"original_image_hash":"h3","corrected_data":{"date":"2024-03-03"}}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	l, err := Open(path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())
	entries := l.Entries()
	assert.Equal(t, "h1", entries[0].OriginalImageHash)
	assert.Equal(t, "h3", entries[1].OriginalImageHash)
}

func TestOversizedLineIsSkipped(t *testing.T) {
	path := tempLogPath(t)
	big := `{"original_image_hash":"h2","corrected_data":{"description":"` +
		strings.Repeat("x", 1<<20) + `"}}`
	lines := strings.Join([]string{
		`{"original_image_hash":"h1","corrected_data":{"date":"2024-01-01"}}`,
		big,
		`{"original_image_hash":"h3","corrected_data":{"date":"2024-03-03"}}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	l, err := Open(path, nil)
	require.NoError(t, err, "one oversized line never blocks the load")
	require.Equal(t, 2, l.Len())
	entries := l.Entries()
	assert.Equal(t, "h1", entries[0].OriginalImageHash)
	assert.Equal(t, "h3", entries[1].OriginalImageHash)
}

func TestRecentExamplesRendering(t *testing.T) {
	l, err := Open(tempLogPath(t), nil)
	require.NoError(t, err)
	require.NoError(t, l.Append("h1", llm.ExtractedData{Date: "2024-01-01", Category: "Finance"}))
	require.NoError(t, l.Append("h2", llm.ExtractedData{Contact: "ACME Corp", DocumentType: "Invoice"}))
	require.NoError(t, l.Append("h3", llm.ExtractedData{Description: "Monthly power bill"}))

	text := l.RecentExamples(2)
	// window is the last two entries, oldest of the window first
	assert.NotContains(t, text, "2024-01-01")
	assert.Contains(t, text, "contact: ACME Corp")
	assert.Contains(t, text, "document_type: Invoice")
	assert.Contains(t, text, "description: Monthly power bill")
	assert.Less(t, strings.Index(text, "ACME Corp"), strings.Index(text, "Monthly power bill"))

	paras := strings.Split(text, "\n\n")
	assert.Len(t, paras, 2)
}

func TestDefaultExampleLimit(t *testing.T) {
	l, err := Open(tempLogPath(t), nil)
	require.NoError(t, err)
	for _, d := range []string{"2024-01-01", "2024-02-02", "2024-03-03"} {
		require.NoError(t, l.Append("h", llm.ExtractedData{Date: d}))
	}
	recent := l.Recent(0)
	require.Len(t, recent, DefaultExampleLimit)
	assert.Equal(t, "2024-02-02", recent[0].CorrectedData.Date)
	assert.Equal(t, "2024-03-03", recent[1].CorrectedData.Date)
}

func TestAppendPersistsOneJSONLinePerEntry(t *testing.T) {
	path := tempLogPath(t)
	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append("h1", llm.ExtractedData{Date: "2024-01-01"}))
	require.NoError(t, l.Append("h2", llm.ExtractedData{Date: "2024-02-02"}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"original_image_hash":"h1"`)
}
