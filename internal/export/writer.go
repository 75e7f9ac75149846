package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jun/mktoexport/internal/marketo"
)

// UnknownLocation is rendered when a template's folder chain could not be
// resolved.
const UnknownLocation = "Unknown Location"

var (
	unsafeChars   = regexp.MustCompile(`[^\w \-]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// sanitizeName makes a template name safe for a directory entry: characters
// outside the ASCII word/space/hyphen set are stripped and whitespace runs
// collapse to a single underscore.
func sanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "")
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "template"
	}
	return s
}

// templateDirName is the deterministic per-template directory name.
func templateDirName(tpl marketo.TemplateSummary) string {
	return fmt.Sprintf("%s_%d", sanitizeName(tpl.Name), tpl.ID)
}

// FolderPathString renders a resolved folder path for display, root first.
// An empty path means the location is unknown.
func FolderPathString(path []marketo.Folder) string {
	if len(path) == 0 {
		return UnknownLocation
	}
	names := make([]string, len(path))
	for i, f := range path {
		names[i] = f.Name
	}
	return strings.Join(names, " > ")
}

// metadata is the per-template metadata.json document.
type metadata struct {
	marketo.TemplateSummary
	FolderPath string    `json:"folderPath"`
	ExportedAt time.Time `json:"exportedAt"`
}

// Writer persists one template per directory under a base directory.
type Writer struct {
	now func() time.Time

	// previewFn, when set, renders a human-viewable copy of the HTML
	// (placeholder tokens substituted) into a sibling preview file.
	previewFn func(string) string
}

// NewWriter returns a Writer.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// WriteTemplate persists a template's metadata and HTML under baseDir.
//
// The metadata files are always written. When htmlErr is set the HTML file is
// replaced by an error marker (no_content.txt when the template simply has no
// HTML, error.txt otherwise) and htmlErr is returned so the caller counts the
// item as failed: a template exported without its content is not a successful
// export, even though its metadata is on disk.
func (w *Writer) WriteTemplate(tpl marketo.TemplateSummary, folderPath []marketo.Folder, html string, htmlErr error, baseDir string) error {
	dir := filepath.Join(baseDir, templateDirName(tpl))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}

	meta := metadata{
		TemplateSummary: tpl,
		FolderPath:      FolderPathString(folderPath),
		ExportedAt:      w.now().UTC(),
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("write metadata.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.txt"), []byte(metadataText(meta)), 0o644); err != nil {
		return fmt.Errorf("write metadata.txt: %w", err)
	}

	if htmlErr != nil {
		marker, body := "error.txt", fmt.Sprintf("Content retrieval failed: %v\n", htmlErr)
		if isNoContent(htmlErr) {
			marker, body = "no_content.txt", "Template has no HTML content.\n"
		}
		if err := os.WriteFile(filepath.Join(dir, marker), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", marker, err)
		}
		return htmlErr
	}

	htmlName := sanitizeName(tpl.Name) + ".html"
	if err := os.WriteFile(filepath.Join(dir, htmlName), []byte(html), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", htmlName, err)
	}

	if w.previewFn != nil {
		previewName := sanitizeName(tpl.Name) + "_preview.html"
		if err := os.WriteFile(filepath.Join(dir, previewName), []byte(w.previewFn(html)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", previewName, err)
		}
	}
	return nil
}

func isNoContent(err error) bool {
	return errors.Is(err, marketo.ErrNoContent)
}

// metadataText is the human-readable sibling of metadata.json.
func metadataText(m metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:       %s\n", m.Name)
	fmt.Fprintf(&b, "ID:         %d\n", m.ID)
	fmt.Fprintf(&b, "Status:     %s\n", m.Status)
	fmt.Fprintf(&b, "Location:   %s\n", m.FolderPath)
	fmt.Fprintf(&b, "Subject:    %s\n", m.Subject)
	fmt.Fprintf(&b, "From:       %s <%s>\n", m.FromName, m.FromEmail)
	fmt.Fprintf(&b, "Created:    %s\n", m.CreatedAt)
	fmt.Fprintf(&b, "Updated:    %s\n", m.UpdatedAt)
	fmt.Fprintf(&b, "Exported:   %s\n", m.ExportedAt.Format(time.RFC3339))
	return b.String()
}
