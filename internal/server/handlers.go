package server

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/core"
	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/llm"
	"github.com/docsift/docsift/internal/observability/metrics"
	"github.com/docsift/docsift/internal/prompt"
	"github.com/docsift/docsift/internal/taxonomy"
)

type handlers struct {
	processor     *core.Processor
	docTypes      *taxonomy.Store
	categories    *taxonomy.Store
	correctionLog *corrections.Log
	template      *prompt.TemplateStore
	exporter      *export.Service
	metrics       *metrics.PipelineMetrics
	log           *slog.Logger
}

func (h *handlers) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Extract runs the full pipeline on a server-local file path. With
// ?sidecar=true the pretty-printed record is also written next to the source
// document.
func (h *handlers) Extract(c fiber.Ctx) error {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Path == "" {
		return jsonError(c, fiber.StatusBadRequest, "request must carry a non-empty \"path\"")
	}

	res, err := h.processor.ProcessFile(c.Context(), body.Path)
	if err != nil {
		stage := string(core.StageOf(err))
		status := statusForStage(core.StageOf(err))
		return c.Status(status).JSON(fiber.Map{
			"status":  "error",
			"stage":   stage,
			"code":    common.CodeOf(err),
			"message": err.Error(),
		})
	}

	if c.Query("sidecar") == "true" {
		if out, werr := core.WriteSidecar(body.Path, res.Record); werr != nil {
			h.log.Warn("server.extract.sidecar_failed", "path", body.Path, "error", werr)
		} else {
			h.log.Info("server.extract.sidecar_written", "path", out)
		}
	}

	return jsonSuccess(c, fiber.Map{
		"record":       res.Record,
		"content_hash": res.ContentHash,
		"format":       res.Format,
		"pages":        res.Pages,
		"job_id":       res.JobID,
	})
}

// statusForStage maps the originating pipeline stage to an HTTP status:
// unreadable input is the client's problem, an unreachable or garbled
// service is upstream's.
func statusForStage(stage core.Stage) int {
	switch stage {
	case core.StageNormalize:
		return fiber.StatusUnprocessableEntity
	case core.StageCall, core.StageDecode:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *handlers) ListTaxonomy(store *taxonomy.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		mains := store.MainEntries()
		subs := make(map[string][]string, len(mains))
		for _, m := range mains {
			if s := store.SubEntries(m); len(s) > 0 {
				subs[m] = s
			}
		}
		return jsonSuccess(c, fiber.Map{
			"entries": store.Entries(),
			"main":    mains,
			"sub":     subs,
		})
	}
}

func (h *handlers) AddTaxonomy(store *taxonomy.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body struct {
			Entry string `json:"entry"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid request body")
		}
		if err := store.Add(body.Entry); err != nil {
			h.log.Error("server.taxonomy.add_failed", "entry", body.Entry, "error", err)
			return jsonError(c, fiber.StatusInternalServerError, "failed to persist taxonomy entry")
		}
		return jsonSuccess(c, fiber.Map{"entries": store.Entries()})
	}
}

func (h *handlers) GetTemplate(c fiber.Ctx) error {
	return jsonSuccess(c, fiber.Map{"template": h.template.Text()})
}

func (h *handlers) PutTemplate(c fiber.Ctx) error {
	var body struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.template.Save(body.Template); err != nil {
		h.log.Error("server.template.save_failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to persist template")
	}
	return jsonSuccess(c, fiber.Map{"template": h.template.Text()})
}

// AppendCorrection records a human correction. The entry is logged only when
// the corrected record structurally differs from the AI's original output;
// an unchanged record returns 204 and is not logged.
func (h *handlers) AppendCorrection(c fiber.Ctx) error {
	var body struct {
		OriginalImageHash string            `json:"original_image_hash"`
		Original          llm.ExtractedData `json:"original"`
		Corrected         llm.ExtractedData `json:"corrected"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if body.OriginalImageHash == "" {
		return jsonError(c, fiber.StatusBadRequest, "original_image_hash is required")
	}
	if body.Corrected == body.Original {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err := h.correctionLog.Append(body.OriginalImageHash, body.Corrected); err != nil {
		h.log.Error("server.corrections.append_failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to append correction")
	}
	if h.metrics != nil {
		h.metrics.ObserveCorrection()
	}
	return jsonSuccess(c, fiber.Map{"entries": h.correctionLog.Len()})
}

func (h *handlers) RecentCorrections(c fiber.Ctx) error {
	limit := corrections.DefaultExampleLimit
	if q := c.Query("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	return jsonSuccess(c, fiber.Map{
		"entries":  h.correctionLog.Recent(limit),
		"examples": h.correctionLog.RecentExamples(limit),
	})
}

func (h *handlers) ExportXLSX(c fiber.Ctx) error {
	b, err := h.exporter.ExportXLSX(c.Context(), 500)
	if err != nil {
		h.log.Error("server.export.failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "failed to build export")
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="docsift-export.xlsx"`)
	return c.Send(b)
}

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}
