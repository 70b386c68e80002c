// Package normalize converts an arbitrary input file (raster image or PDF)
// into a single in-memory page image plus a compressed upload payload.
package normalize

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	ltpdf "github.com/ledongthuc/pdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/docsift/docsift/constants"
	"github.com/docsift/docsift/internal/common"
)

// Config for the normalizer.
type Config struct {
	Pdftoppm string // pdftoppm binary, default "pdftoppm"
	DPI      int    // render resolution; 72 keeps pixels == PDF points
}

// Document is the normalized result: one renderable page image and the
// content hash of the source file's raw bytes. Multi-page documents are
// truncated to page one; that is an intentional scope limit, not a bug.
type Document struct {
	Image       image.Image
	Format      constants.FileFormat
	Pages       int
	ContentHash string // hex MD5 of the raw input bytes
	SourcePath  string
}

type Normalizer struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Normalizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 72
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, runner: execRunner{log: logger}, log: logger}
}

// HashBytes returns the hex MD5 digest of b. MD5 is fine here: the hash keys
// correction-log entries for deduplication, nothing security-sensitive.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Normalize reads the file at path and produces one page image. It first
// attempts a direct raster decode; on failure it treats the file as a
// paginated document and renders only its first page. Both failing yields a
// DOCUMENT_UNREADABLE error.
func (n *Normalizer) Normalize(ctx context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewAppError(common.CodeDocumentUnreadable,
			fmt.Sprintf("read %q", path), err)
	}
	hash := HashBytes(raw)

	if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
		n.log.Debug("normalize.image.ok", "path", path, "bounds", img.Bounds().String())
		return &Document{
			Image:       img,
			Format:      constants.IMAGE,
			Pages:       1,
			ContentHash: hash,
			SourcePath:  path,
		}, nil
	}

	img, pages, err := n.renderFirstPDFPage(ctx, path, raw)
	if err != nil {
		return nil, common.NewAppError(common.CodeDocumentUnreadable,
			fmt.Sprintf("%q is neither a raster image nor a readable PDF", path), err)
	}
	n.log.Debug("normalize.pdf.ok", "path", path, "pages", pages, "bounds", img.Bounds().String())
	return &Document{
		Image:       img,
		Format:      constants.PDF,
		Pages:       pages,
		ContentHash: hash,
		SourcePath:  path,
	}, nil
}

// renderFirstPDFPage validates the PDF and rasterizes page one via pdftoppm.
func (n *Normalizer) renderFirstPDFPage(ctx context.Context, path string, raw []byte) (image.Image, int, error) {
	reader, err := ltpdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, 0, fmt.Errorf("parse pdf: %w", err)
	}
	pages := reader.NumPage()
	if pages == 0 {
		return nil, 0, fmt.Errorf("pdf has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "docsift-pdf-*")
	if err != nil {
		return nil, pages, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			n.log.Warn("normalize.pdf.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -f 1 -l 1 -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := n.runner.Run(ctx, n.cfg.Pdftoppm,
		"-f", "1", "-l", "1",
		"-r", fmt.Sprintf("%d", n.cfg.DPI),
		"-png", path, prefix)
	if err != nil {
		return nil, pages, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 1<<10))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, pages, fmt.Errorf("pdftoppm produced no images")
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, pages, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			n.log.Warn("normalize.pdf.page_close_error", "file", matches[0], "error", cerr)
		}
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, pages, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, pages, nil
}
