package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jun/mktoexport/internal/marketo"
	"github.com/jun/mktoexport/internal/progress"
)

// fakeSource is an in-memory stand-in for the API client.
type fakeSource struct {
	mu        sync.Mutex
	templates []marketo.TemplateSummary
	htmlErr   map[int]error
	listErr   error

	active    int
	maxActive int
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{htmlErr: make(map[int]error)}
	for i := 1; i <= n; i++ {
		s.templates = append(s.templates, marketo.TemplateSummary{
			ID:     i,
			Name:   fmt.Sprintf("tpl %d", i),
			Folder: marketo.FolderRef{ID: 100},
		})
	}
	return s
}

func (s *fakeSource) ListTemplates(_ context.Context, _ int, onPage marketo.PageFunc) ([]marketo.TemplateSummary, error) {
	if s.listErr != nil && len(s.templates) == 0 {
		return nil, s.listErr
	}
	if onPage != nil {
		onPage(len(s.templates))
	}
	return s.templates, s.listErr
}

func (s *fakeSource) GetTemplate(_ context.Context, id int) (*marketo.TemplateSummary, error) {
	for _, tpl := range s.templates {
		if tpl.ID == id {
			return &tpl, nil
		}
	}
	return nil, marketo.ErrNotFound
}

func (s *fakeSource) TemplateHTML(_ context.Context, id int) (string, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond) // let batch siblings overlap

	s.mu.Lock()
	s.active--
	err := s.htmlErr[id]
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<p>template %d</p>", id), nil
}

func (s *fakeSource) ResolveFolderPath(_ context.Context, folderID int) ([]marketo.Folder, error) {
	return []marketo.Folder{{ID: folderID, Name: "Email"}}, nil
}

func TestExportAll_AllSucceed(t *testing.T) {
	src := newFakeSource(12)
	e := NewExporter(src, WithBatchSize(5), WithPacing(rate.Inf))

	dir := t.TempDir()
	res, err := e.ExportAll(context.Background(), dir)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}

	if res.Total != 12 || res.Succeeded != 12 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 12 {
		t.Fatalf("expected 12 template dirs, got %d", len(entries))
	}
	if src.maxActive > 5 {
		t.Fatalf("batch concurrency exceeded batch size: %d", src.maxActive)
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}
}

func TestExportAll_PartialFailureIsolation(t *testing.T) {
	src := newFakeSource(5)
	src.htmlErr[3] = &marketo.APIError{Code: "611", Message: "System error"}
	e := NewExporter(src, WithBatchSize(5), WithPacing(rate.Inf))

	dir := t.TempDir()
	res, err := e.ExportAll(context.Background(), dir)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}

	if res.Failed != 1 || res.Succeeded != 4 {
		t.Fatalf("expected 4 ok / 1 failed, got %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].ID != 3 {
		t.Fatalf("unexpected error list: %+v", res.Errors)
	}
	// Later items were still attempted.
	for _, id := range []int{4, 5} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("tpl_%d_%d", id, id))); err != nil {
			t.Fatalf("template %d was not attempted: %v", id, err)
		}
	}
	// The failed item still has its metadata and marker on disk.
	if _, err := os.Stat(filepath.Join(dir, "tpl_3_3", "error.txt")); err != nil {
		t.Fatalf("failed item marker missing: %v", err)
	}
}

func TestExportAll_PageCapIsWarningNotFailure(t *testing.T) {
	src := newFakeSource(3)
	src.listErr = marketo.ErrPageLimit
	e := NewExporter(src, WithPacing(rate.Inf))

	res, err := e.ExportAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if res.Total != 3 || res.Succeeded != 3 {
		t.Fatalf("partial run should still export: %+v", res)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected page-cap warning, got %+v", res.Warnings)
	}
}

func TestExportAll_ProgressEvents(t *testing.T) {
	src := newFakeSource(7)

	var mu sync.Mutex
	var events []progress.Event
	obs := progress.ObserverFunc(func(e progress.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	e := NewExporter(src, WithBatchSize(3), WithPacing(rate.Inf), WithObserver(obs))
	if _, err := e.ExportAll(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}

	var exporting, done int
	for _, ev := range events {
		switch ev.Stage {
		case progress.StageExporting:
			exporting++
		case progress.StageDone:
			done++
			if ev.Percent() != 100 {
				t.Fatalf("final event percent = %f", ev.Percent())
			}
		}
	}
	if exporting != 3 { // ceil(7/3) batches
		t.Fatalf("expected 3 exporting events, got %d", exporting)
	}
	if done != 1 {
		t.Fatalf("expected 1 done event, got %d", done)
	}
}

func TestExportAll_WithArchive(t *testing.T) {
	src := newFakeSource(2)
	e := NewExporter(src, WithPacing(rate.Inf), WithArchive(true))

	dir := filepath.Join(t.TempDir(), "export")
	res, err := e.ExportAll(context.Background(), dir)
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if res.ArchivePath != dir+".zip" {
		t.Fatalf("unexpected archive path %q", res.ArchivePath)
	}
	if _, err := os.Stat(res.ArchivePath); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

func TestExportOne(t *testing.T) {
	src := newFakeSource(3)
	e := NewExporter(src, WithPacing(rate.Inf))

	dir := t.TempDir()
	if err := e.ExportOne(context.Background(), 2, dir); err != nil {
		t.Fatalf("ExportOne failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tpl_2_2", "tpl_2.html")); err != nil {
		t.Fatalf("exported html missing: %v", err)
	}

	if err := e.ExportOne(context.Background(), 99, dir); err == nil {
		t.Fatal("expected error for unknown template id")
	}
}
