// Package server exposes the extraction core to the external review surface
// over HTTP.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docsift/docsift/internal/core"
	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/observability/metrics"
	"github.com/docsift/docsift/internal/prompt"
	"github.com/docsift/docsift/internal/taxonomy"
)

// Server wraps the Fiber app and the extraction core dependencies.
type Server struct {
	App *fiber.App
}

// New creates the HTTP server with middleware and routes configured.
func New(
	processor *core.Processor,
	docTypes, categories *taxonomy.Store,
	correctionLog *corrections.Log,
	template *prompt.TemplateStore,
	exporter *export.Service,
	m *metrics.PipelineMetrics,
	log *slog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{"status": "error", "error": message})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	h := &handlers{
		processor:     processor,
		docTypes:      docTypes,
		categories:    categories,
		correctionLog: correctionLog,
		template:      template,
		exporter:      exporter,
		metrics:       m,
		log:           log,
	}

	app.Get("/healthz", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Post("/extract", h.Extract)
	api.Get("/taxonomy/doctypes", h.ListTaxonomy(docTypes))
	api.Post("/taxonomy/doctypes", h.AddTaxonomy(docTypes))
	api.Get("/taxonomy/categories", h.ListTaxonomy(categories))
	api.Post("/taxonomy/categories", h.AddTaxonomy(categories))
	api.Get("/template", h.GetTemplate)
	api.Put("/template", h.PutTemplate)
	api.Post("/corrections", h.AppendCorrection)
	api.Get("/corrections/recent", h.RecentCorrections)
	api.Get("/export.xlsx", h.ExportXLSX)

	return &Server{App: app}
}
