package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docsift/docsift/constants"
	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/core"
	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/llm/gemini"
	"github.com/docsift/docsift/internal/normalize"
	"github.com/docsift/docsift/internal/observability/logging"
	"github.com/docsift/docsift/internal/prompt"
	"github.com/docsift/docsift/internal/repository"
	"github.com/docsift/docsift/internal/taxonomy"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file    = flag.String("file", "", "single document to extract")
		dir     = flag.String("dir", "", "directory of documents to extract")
		out     = flag.String("out", "", "output XLSX file path (optional)")
		sidecar = flag.Bool("sidecar", true, "write the extracted record as JSON next to each document")
		inmem   = flag.Bool("inmem", false, "use an in-memory job database instead of the config-dir one")
	)
	flag.Parse()

	if (*file == "") == (*dir == "") {
		printError("exactly one of -file or -dir is required\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("docsift", cfg.Log.Level)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		printError("configuration invalid: %v\n", err)
		os.Exit(1)
	}

	processor, exporter, closeDB, err := wire(cfg, logger, *inmem)
	if err != nil {
		printError("startup: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	paths, err := collectPaths(*file, *dir)
	if err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("no supported documents found\n")
		os.Exit(1)
	}

	ctx := context.Background()
	var ok, failed int
	for _, p := range paths {
		res, err := processor.ProcessFile(ctx, p)
		if err != nil {
			failed++
			printError("FAIL  %-10s %s: %v\n", core.StageOf(err), p, err)
			continue
		}
		ok++
		if *sidecar {
			if outPath, werr := core.WriteSidecar(p, res.Record); werr != nil {
				printError("WARN  sidecar for %s: %v\n", p, werr)
			} else {
				fmt.Printf("OK    %s -> %s\n", p, outPath)
				continue
			}
		}
		fmt.Printf("OK    %s (type=%q category=%q date=%q)\n",
			p, res.Record.DocumentType, res.Record.Category, res.Record.Date)
	}

	fmt.Printf("\nprocessed %d document(s): %d ok, %d failed\n", len(paths), ok, failed)

	if *out != "" {
		b, err := exporter.ExportXLSX(ctx, len(paths))
		if err != nil {
			printError("export: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, b, 0o644); err != nil {
			printError("write %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *out)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func wire(cfg *common.Config, logger *slog.Logger, inmem bool) (*core.Processor, *export.Service, func(), error) {
	docTypes, err := taxonomy.Load(cfg.ConfigDir.DocumentTypesPath(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load document types: %w", err)
	}
	categories, err := taxonomy.Load(cfg.ConfigDir.CategoriesPath(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load categories: %w", err)
	}
	correctionLog, err := corrections.Open(cfg.ConfigDir.CorrectionsPath(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open correction log: %w", err)
	}
	template, err := prompt.LoadTemplate(cfg.ConfigDir.PromptTemplatePath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load prompt template: %w", err)
	}

	dbPath := cfg.ConfigDir.DatabasePath()
	if inmem {
		dbPath = ":memory:"
	}
	db, err := repository.OpenDB(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open job database: %w", err)
	}
	jobs := repository.NewJobsRepo(db)
	if err := jobs.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ensure job schema: %w", err)
	}

	normalizer := normalize.New(normalize.Config{
		Pdftoppm: cfg.Normalize.Pdftoppm,
		DPI:      cfg.Normalize.DPI,
	}, logger)
	extractor := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	processor := core.NewProcessor(
		logger, normalizer, docTypes, categories, correctionLog, template,
		extractor, jobs, nil, cfg.Normalize.JPEGQuality,
	)
	exporter := export.NewService(jobs, correctionLog, logger)
	return processor, exporter, func() { _ = db.Close() }, nil
}

func collectPaths(file, dir string) ([]string, error) {
	if file != "" {
		return []string{file}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if constants.MapExtToFormat(filepath.Ext(e.Name())) == "" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
