// Package export drives the full template export: list, fetch, write, zip.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jun/mktoexport/internal/marketo"
	"github.com/jun/mktoexport/internal/progress"
)

// DefaultBatchSize is how many templates are fetched and written concurrently.
const DefaultBatchSize = 5

// defaultPace limits batch starts so the upstream rate limit
// (100 calls / 20s per instance) is never approached.
var defaultPace = rate.Every(500 * time.Millisecond)

// Source is the slice of the API client the exporter consumes.
type Source interface {
	ListTemplates(ctx context.Context, pageSize int, onPage marketo.PageFunc) ([]marketo.TemplateSummary, error)
	GetTemplate(ctx context.Context, id int) (*marketo.TemplateSummary, error)
	TemplateHTML(ctx context.Context, id int) (string, error)
	ResolveFolderPath(ctx context.Context, folderID int) ([]marketo.Folder, error)
}

// ItemError records a single template's export failure.
type ItemError struct {
	ID      int
	Message string
}

// Result is the terminal report of an export run.
type Result struct {
	RunID       string
	Total       int
	Succeeded   int
	Failed      int
	Errors      []ItemError
	Warnings    []string
	OutputDir   string
	ArchivePath string
}

// Exporter orchestrates the export pipeline.
type Exporter struct {
	src       Source
	writer    *Writer
	batchSize int
	pageSize  int
	limiter   *rate.Limiter
	obs       progress.Observer
	archive   bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithBatchSize sets how many templates are processed concurrently per batch.
func WithBatchSize(n int) ExporterOption {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) ExporterOption {
	return func(e *Exporter) { e.pageSize = n }
}

// WithObserver sets the progress observer.
func WithObserver(obs progress.Observer) ExporterOption {
	return func(e *Exporter) {
		if obs != nil {
			e.obs = obs
		}
	}
}

// WithArchive makes the run end with a ZIP of the export directory.
func WithArchive(enabled bool) ExporterOption {
	return func(e *Exporter) { e.archive = enabled }
}

// WithPacing overrides the inter-batch rate limit. Tests pass rate.Inf.
func WithPacing(limit rate.Limit) ExporterOption {
	return func(e *Exporter) { e.limiter = rate.NewLimiter(limit, 1) }
}

// WithPreviewRenderer makes each exported template also carry a preview file
// rendered through fn (placeholder substitution for human viewing).
func WithPreviewRenderer(fn func(string) string) ExporterOption {
	return func(e *Exporter) { e.writer.previewFn = fn }
}

// NewExporter creates an Exporter over the given source.
func NewExporter(src Source, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		src:       src,
		writer:    NewWriter(),
		batchSize: DefaultBatchSize,
		pageSize:  marketo.DefaultPageSize,
		limiter:   rate.NewLimiter(defaultPace, 1),
		obs:       progress.Nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportAll exports every template into outDir and returns the aggregate
// result. Per-item failures are recorded and never abort the run; only a
// failed listing (the run cannot start) returns an error.
func (e *Exporter) ExportAll(ctx context.Context, outDir string) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		OutputDir: outDir,
	}

	templates, err := e.src.ListTemplates(ctx, e.pageSize, func(fetched int) {
		e.obs.Publish(progress.Event{RunID: res.RunID, Stage: progress.StageListing, Processed: fetched})
	})
	if err != nil {
		if !errors.Is(err, marketo.ErrPageLimit) {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.Total = len(templates)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// Fixed-size batches, strictly in submission order: batch N settles
	// completely (successes and failures both) before batch N+1 starts.
	for start := 0; start < len(templates); start += e.batchSize {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		end := start + e.batchSize
		if end > len(templates) {
			end = len(templates)
		}
		batch := templates[start:end]

		itemErrs := make([]error, len(batch))
		g := new(errgroup.Group)
		for i, tpl := range batch {
			i, tpl := i, tpl
			g.Go(func() error {
				itemErrs[i] = e.exportOne(ctx, tpl, outDir)
				return nil
			})
		}
		g.Wait()

		for i, itemErr := range itemErrs {
			if itemErr != nil {
				res.Failed++
				res.Errors = append(res.Errors, ItemError{ID: batch[i].ID, Message: itemErr.Error()})
			} else {
				res.Succeeded++
			}
		}

		e.obs.Publish(progress.Event{
			RunID:     res.RunID,
			Stage:     progress.StageExporting,
			Processed: end,
			Total:     res.Total,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
		})
	}

	if e.archive {
		e.obs.Publish(progress.Event{RunID: res.RunID, Stage: progress.StageArchiving, Message: "compressing export"})
		zipPath := outDir + ".zip"
		if err := Archive(outDir, zipPath); err != nil {
			// The export itself is complete; a failed archive is a warning.
			res.Warnings = append(res.Warnings, err.Error())
		} else {
			res.ArchivePath = zipPath
		}
	}

	e.obs.Publish(progress.Event{
		RunID:     res.RunID,
		Stage:     progress.StageDone,
		Processed: res.Total,
		Total:     res.Total,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Message:   fmt.Sprintf("exported %d of %d templates", res.Succeeded, res.Total),
	})
	return res, nil
}

// ExportOne exports a single template by id, for spot checks.
func (e *Exporter) ExportOne(ctx context.Context, id int, outDir string) error {
	tpl, err := e.src.GetTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("template %d: %w", id, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return e.exportOne(ctx, *tpl, outDir)
}

// exportOne runs the per-item pipeline: content, folder path, write.
// A folder-resolution error degrades to an unknown location rather than
// failing the item; only content and filesystem failures count.
func (e *Exporter) exportOne(ctx context.Context, tpl marketo.TemplateSummary, outDir string) error {
	html, htmlErr := e.src.TemplateHTML(ctx, tpl.ID)

	folderPath, err := e.src.ResolveFolderPath(ctx, tpl.Folder.ID)
	if err != nil {
		folderPath = nil
	}

	return e.writer.WriteTemplate(tpl, folderPath, html, htmlErr, outDir)
}
