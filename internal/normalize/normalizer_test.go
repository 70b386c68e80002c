package normalize

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/constants"
	"github.com/docsift/docsift/internal/common"
)

func writeTestPNG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

// buildPDF assembles a PDF from the given objects with a hand-computed xref
// table, enough for the parser to report a page count.
func buildPDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for i, body := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xref)
	return buf.Bytes()
}

func onePagePDF() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	)
}

func zeroPagePDF() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	)
}

// stubRunner impersonates pdftoppm: it drops a rendered page next to the
// output prefix it receives as its final argument.
type stubRunner struct {
	t     *testing.T
	calls int
	args  []string
	fail  bool
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls++
	s.args = args
	if s.fail {
		return nil, []byte("Syntax Error: broken document"), fmt.Errorf("exit status 1")
	}
	require.NotEmpty(s.t, args)
	prefix := args[len(args)-1]
	writeTestPNG(s.t, prefix+"-1.png", 4, 4)
	return nil, nil, nil
}

func TestNormalizeRasterImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	raw := writeTestPNG(t, path, 8, 6)

	n := New(Config{}, nil)
	doc, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, constants.IMAGE, doc.Format)
	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, path, doc.SourcePath)
	assert.Equal(t, image.Rect(0, 0, 8, 6), doc.Image.Bounds())

	sum := md5.Sum(raw)
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.ContentHash,
		"hash keys the raw source bytes, not the decoded pixels")
}

func TestNormalizeSameBytesSameHash(t *testing.T) {
	dir := t.TempDir()
	raw := writeTestPNG(t, filepath.Join(dir, "a.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), raw, 0o644))

	n := New(Config{}, nil)
	a, err := n.Normalize(context.Background(), filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	b, err := n.Normalize(context.Background(), filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestNormalizePDFFirstPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, onePagePDF(), 0o644))

	n := New(Config{}, nil)
	stub := &stubRunner{t: t}
	n.runner = stub

	doc, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, constants.PDF, doc.Format)
	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, 1, stub.calls)
	require.NotNil(t, doc.Image)
	assert.Equal(t, image.Rect(0, 0, 4, 4), doc.Image.Bounds())

	// Rasterization is constrained to page one regardless of document length.
	require.GreaterOrEqual(t, len(stub.args), 7)
	assert.Equal(t, []string{"-f", "1", "-l", "1"}, stub.args[:4])
	assert.Contains(t, stub.args, "-png")
	assert.Equal(t, path, stub.args[len(stub.args)-2])
}

func TestNormalizeZeroPagePDFIsUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(path, zeroPagePDF(), 0o644))

	n := New(Config{}, nil)
	stub := &stubRunner{t: t}
	n.runner = stub

	_, err := n.Normalize(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, common.CodeDocumentUnreadable, common.CodeOf(err))
	assert.Zero(t, stub.calls, "a pageless document never reaches the rasterizer")
}

func TestNormalizePDFRenderFailureIsUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, onePagePDF(), 0o644))

	n := New(Config{}, nil)
	n.runner = &stubRunner{t: t, fail: true}

	_, err := n.Normalize(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, common.CodeDocumentUnreadable, common.CodeOf(err))
}

func TestNormalizeGarbageIsUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noise.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an image, not a pdf"), 0o644))

	n := New(Config{}, nil)
	_, err := n.Normalize(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, common.CodeDocumentUnreadable, common.CodeOf(err))
}

func TestNewWiresLoggingRunner(t *testing.T) {
	n := New(Config{}, nil)
	r, ok := n.runner.(execRunner)
	require.True(t, ok)
	assert.NotNil(t, r.log)
}

func TestNormalizeMissingFileIsUnreadable(t *testing.T) {
	n := New(Config{}, nil)
	_, err := n.Normalize(context.Background(), filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
	assert.Equal(t, common.CodeDocumentUnreadable, common.CodeOf(err))
}
