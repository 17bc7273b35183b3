package source

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/edulane/coursegen/internal/huberrors"
	"github.com/edulane/coursegen/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions the loader cannot read.
var ErrUnsupportedFormat = errors.New("unsupported source file format")

// pageBreak separates pages in plain-text sources.
const pageBreak = "\f"

// FileLoader reads sources from .txt, .md and .pdf files.
type FileLoader struct {
	logger *slog.Logger
}

// NewFileLoader creates a file loader. A nil logger uses slog.Default().
func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileLoader{logger: logger}
}

// LoadFile reads path into a Source with the given type and id. PDF pages keep their page numbers.
func (l *FileLoader) LoadFile(path, sourceType, sourceID string) (*models.Source, error) {
	if sourceID == "" {
		sourceID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	src := &models.Source{Type: sourceType, ID: sourceID}

	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		src.Pages, err = readTextPages(path)
	case ".pdf":
		src.Pages, err = l.readPDFPages(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, huberrors.NewSourceNotFoundError(sourceType, sourceID)
		}

		return nil, err
	}

	src.Title = deriveTitle(path, src.Pages)

	return checkText(src)
}

func readTextPages(path string) ([]models.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var pages []models.Page

	for i, part := range strings.Split(text, pageBreak) {
		if strings.TrimSpace(part) == "" {
			continue
		}

		pages = append(pages, models.Page{Number: i + 1, Text: part})
	}

	return pages, nil
}

func (l *FileLoader) readPDFPages(path string) ([]models.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}

	var pages []models.Page

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("skipping unreadable pdf page", "path", path, "page", i, "error", err)

			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, models.Page{Number: i, Text: text})
	}

	return pages, nil
}

// deriveTitle prefers a leading markdown heading, then the file name.
func deriveTitle(path string, pages []models.Page) string {
	if len(pages) > 0 {
		for _, line := range strings.SplitN(pages[0].Text, "\n", 5) {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "# ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "# "))
			}
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}
