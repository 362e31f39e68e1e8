package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ErrUnsupportedFile is returned for extensions the extractor cannot read.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Page is the text of one source page. Number is 1-based for paged formats
// and 0 when the format has no pages.
type Page struct {
	Number int
	Text   string
}

// InitPDFLicense registers the UniDoc metered key. PDF extraction fails
// without one.
func InitPDFLicense(key string) error {
	if key == "" {
		return errors.New("no UniDoc license key configured")
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("failed to set UniDoc license key: %w", err)
	}
	return nil
}

var supportedExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true, ".csv": true}

func isSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ExtractPages reads a file and returns its text, page by page where the
// format has pages.
func ExtractPages(ctx context.Context, path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".pdf":
		return extractPDFPages(f)
	case ".csv":
		return loadAsSinglePage(ctx, documentloaders.NewCSV(f))
	default:
		return loadAsSinglePage(ctx, documentloaders.NewText(f))
	}
}

type loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// loadAsSinglePage joins every loaded document (one per CSV row, or the
// whole text file) into one unnumbered page.
func loadAsSinglePage(ctx context.Context, l loader) ([]Page, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.PageContent); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return []Page{{Text: strings.Join(parts, "\n")}}, nil
}

// extractPDFPages uses UniPDF to get the text of every page.
func extractPDFPages(r io.ReadSeeker) ([]Page, error) {
	pdfReader, err := model.NewPdfReader(r)
	if err != nil {
		return nil, err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// PagesText joins pages for whole-document checks such as relevance.
func PagesText(pages []Page) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
