// Package core sequences one extraction request end-to-end:
// normalize -> compile -> call -> decode.
package core

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/docsift/docsift/constants"
	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/llm"
	"github.com/docsift/docsift/internal/normalize"
	"github.com/docsift/docsift/internal/observability/metrics"
	"github.com/docsift/docsift/internal/prompt"
	"github.com/docsift/docsift/internal/taxonomy"
)

// JobSink records extraction attempts for the audit trail. Nil-safe from the
// processor's point of view: pass nil to skip job recording.
type JobSink interface {
	Start(ctx context.Context, id uuid.UUID, sourcePath, contentHash string, startedAt time.Time) error
	FinishSuccess(ctx context.Context, id uuid.UUID, extractedJSON []byte, finishedAt time.Time) error
	FinishFailure(ctx context.Context, id uuid.UUID, stage, message string, finishedAt time.Time) error
}

// Result carries the decoded record plus the normalization facts callers need
// downstream (the content hash keys correction-log entries).
type Result struct {
	Record      llm.ExtractedData
	ContentHash string
	Format      constants.FileFormat
	Pages       int
	JobID       uuid.UUID
}

// Processor owns the lifecycle of one extraction request. The taxonomy stores
// and correction log are long-lived shared state owned by the configuration
// subsystem; the processor only reads them.
type Processor struct {
	logger      *slog.Logger
	normalizer  *normalize.Normalizer
	docTypes    *taxonomy.Store
	categories  *taxonomy.Store
	corrections *corrections.Log
	template    *prompt.TemplateStore
	extractor   llm.Extractor
	jobs        JobSink
	metrics     *metrics.PipelineMetrics
	jpegQuality int
}

func NewProcessor(
	logger *slog.Logger,
	normalizer *normalize.Normalizer,
	docTypes, categories *taxonomy.Store,
	correctionLog *corrections.Log,
	template *prompt.TemplateStore,
	extractor llm.Extractor,
	jobs JobSink,
	m *metrics.PipelineMetrics,
	jpegQuality int,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if jpegQuality <= 0 {
		jpegQuality = normalize.DefaultJPEGQuality
	}
	return &Processor{
		logger:      logger,
		normalizer:  normalizer,
		docTypes:    docTypes,
		categories:  categories,
		corrections: correctionLog,
		template:    template,
		extractor:   extractor,
		jobs:        jobs,
		metrics:     m,
		jpegQuality: jpegQuality,
	}
}

// ProcessFile runs the whole pipeline for one document. Errors are tagged
// with their originating stage; a failure is terminal for this request but
// recoverable for the session (the caller may try another file, or the same
// one again).
func (p *Processor) ProcessFile(ctx context.Context, path string) (*Result, error) {
	jobID := uuid.New()
	start := time.Now()
	p.logger.Info("pipeline.start", "job_id", jobID, "path", path)

	res, err := p.run(ctx, jobID, path, start)
	elapsed := time.Since(start)
	if err != nil {
		stage := string(StageOf(err))
		if p.metrics != nil {
			p.metrics.ObserveExtraction("failure", elapsed)
			p.metrics.ObserveStageFailure(stage)
		}
		p.logger.Error("pipeline.failed",
			"job_id", jobID, "path", path, "stage", stage,
			"error", err, "elapsed_ms", elapsed.Milliseconds(),
		)
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.ObserveExtraction("success", elapsed)
	}
	p.logger.Info("pipeline.ok",
		"job_id", jobID, "path", path,
		"date", res.Record.Date,
		"document_type", res.Record.DocumentType,
		"category", res.Record.Category,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) run(ctx context.Context, jobID uuid.UUID, path string, start time.Time) (*Result, error) {
	// Normalizing
	doc, err := p.normalizer.Normalize(ctx, path)
	if err != nil {
		p.recordFailure(ctx, jobID, path, "", StageNormalize, err, start)
		return nil, failAt(StageNormalize, err)
	}
	p.recordStart(ctx, jobID, path, doc.ContentHash, start)

	payload, err := normalize.EncodeJPEG(doc.Image, p.jpegQuality)
	if err != nil {
		p.recordFailure(ctx, jobID, path, doc.ContentHash, StageNormalize, err, start)
		return nil, failAt(StageNormalize, err)
	}

	// Compiling
	compiled := prompt.Compile(
		p.template.Text(),
		p.docTypes.Entries(),
		p.categories.Entries(),
		p.corrections.RecentExamples(corrections.DefaultExampleLimit),
		fallbackDate(path),
	)
	p.logger.Debug("pipeline.compile.ok", "job_id", jobID, "prompt_len", len(compiled))

	// Calling, the single suspension point of the pipeline.
	raw, err := p.extractor.GenerateContent(ctx, compiled, payload)
	if err != nil {
		p.recordFailure(ctx, jobID, path, doc.ContentHash, StageCall, err, start)
		return nil, failAt(StageCall, err)
	}

	// Decoding
	record, err := llm.DecodeResponse(raw)
	if err != nil {
		p.recordFailure(ctx, jobID, path, doc.ContentHash, StageDecode, err, start)
		return nil, failAt(StageDecode, err)
	}

	p.recordSuccess(ctx, jobID, record)
	return &Result{
		Record:      record,
		ContentHash: doc.ContentHash,
		Format:      doc.Format,
		Pages:       doc.Pages,
		JobID:       jobID,
	}, nil
}

// fallbackDate derives the {{FILE_CREATION_DATE}} substitution from the
// file's modification time; today when the file cannot be stat'ed.
func fallbackDate(path string) string {
	if st, err := os.Stat(path); err == nil {
		return st.ModTime().Format("2006-01-02")
	}
	return time.Now().Format("2006-01-02")
}

func (p *Processor) recordStart(ctx context.Context, id uuid.UUID, path, hash string, start time.Time) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Start(ctx, id, path, hash, start); err != nil {
		p.logger.Warn("pipeline.job_record_failed", "job_id", id, "error", err)
	}
}

func (p *Processor) recordSuccess(ctx context.Context, id uuid.UUID, record llm.ExtractedData) {
	if p.jobs == nil {
		return
	}
	b, err := marshalRecord(record)
	if err != nil {
		p.logger.Warn("pipeline.job_record_failed", "job_id", id, "error", err)
		return
	}
	if err := p.jobs.FinishSuccess(ctx, id, b, time.Now()); err != nil {
		p.logger.Warn("pipeline.job_record_failed", "job_id", id, "error", err)
	}
}

func (p *Processor) recordFailure(ctx context.Context, id uuid.UUID, path, hash string, stage Stage, cause error, start time.Time) {
	if p.jobs == nil {
		return
	}
	// A normalize failure happens before Start was recorded; make sure the
	// row exists so the audit trail still shows the attempt.
	if stage == StageNormalize && hash == "" {
		if err := p.jobs.Start(ctx, id, path, "", start); err != nil {
			p.logger.Warn("pipeline.job_record_failed", "job_id", id, "error", err)
			return
		}
	}
	if err := p.jobs.FinishFailure(ctx, id, string(stage), cause.Error(), time.Now()); err != nil {
		p.logger.Warn("pipeline.job_record_failed", "job_id", id, "error", err)
	}
}
