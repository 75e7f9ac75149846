package export

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArchiveError reports a failed archive step. The export directory is
// intact when this is returned; only the ZIP is missing.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Archive compresses sourceDir into a ZIP at destZip. The directory's
// immediate contents sit at the archive root; extracting does not add an
// enclosing folder level.
func Archive(sourceDir, destZip string) error {
	out, err := os.Create(destZip)
	if err != nil {
		return &ArchiveError{Path: destZip, Err: err}
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		zw.Close()
		return &ArchiveError{Path: destZip, Err: walkErr}
	}

	if err := zw.Close(); err != nil {
		return &ArchiveError{Path: destZip, Err: err}
	}
	return nil
}
