// Package pdftext converts PDF bytes to page-ordered plain text using pdfcpu.
// pdfcpu works on files, so each extraction round-trips through a temp
// directory that is removed when the call returns.
package pdftext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type Extractor struct {
	tempDir string
}

func NewExtractor() *Extractor {
	dir := filepath.Join(os.TempDir(), "paperstack-pdftext")
	os.MkdirAll(dir, 0o755)
	return &Extractor{tempDir: dir}
}

// Extract returns the concatenated text of all pages in order. Page breaks
// become blank lines; the caller applies its own sufficiency checks.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(e.tempDir, "extract-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp pdf: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages-")
	if err != nil {
		return "", fmt.Errorf("creating page dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tmpPath, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extracting pdf content: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	entries, _ := os.ReadDir(outDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(entry.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var b strings.Builder
	for page := 1; page <= pageCount; page++ {
		text := strings.TrimSpace(pageTexts[page])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
