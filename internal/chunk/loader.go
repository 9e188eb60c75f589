package chunk

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// IsSupported reports whether a file path has a supported document extension.
func IsSupported(path string) bool {
	_, ok := FormatForExt(filepath.Ext(path))
	return ok
}

// LoadDocuments walks dir and returns every supported document, normalized and
// sorted by path. Hidden directories are skipped. Unreadable files are logged
// and skipped.
func LoadDocuments(ctx context.Context, dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, docerrors.IOError(fmt.Sprintf("cannot access docs directory %s", dir), err).
			WithSuggestion("create the directory or pass --docs-dir")
	}
	if !info.IsDir() {
		return nil, docerrors.IOError(fmt.Sprintf("docs path %s is not a directory", dir), nil)
	}

	var docs []Document
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("docs_walk_error", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		format, ok := FormatForExt(filepath.Ext(path))
		if !ok {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("doc_read_failed", slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}

		docs = append(docs, Normalize(rel, string(data), format))
		return nil
	})
	if walkErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, docerrors.IOError(fmt.Sprintf("failed to walk docs directory %s", dir), walkErr)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	slog.Debug("docs_loaded", slog.String("dir", dir), slog.Int("count", len(docs)))
	return docs, nil
}
