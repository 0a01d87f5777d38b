package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/docqa/doc-qa-service/internal/core"
)

// Extractor pulls per-page text out of PDF files with pdfcpu. pdfcpu has no
// direct text-extraction call, so page content streams are extracted to a
// temp directory and their text-show operators decoded.
type Extractor struct {
	tempDir string
}

var _ core.PageExtractor = (*Extractor)(nil)

func NewExtractor() (*Extractor, error) {
	tempDir := filepath.Join(os.TempDir(), "doc-qa-pdf")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pdf temp dir: %w", err)
	}
	return &Extractor{tempDir: tempDir}, nil
}

// ExtractPages returns the document's text page by page. A corrupt or
// unreadable file, or a document with no pages, is an error; pages without
// decodable text come back empty and the caller decides whether the document
// as a whole counts as empty.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]core.PageText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("unreadable pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%d_%d", os.Getpid(), time.Now().UnixNano()))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageTexts := make(map[int]string)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pageNum, ok := pageNumberFromFilename(entry.Name())
		if !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = decodeContentText(content)
	}

	pages := make([]core.PageText, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, core.PageText{Number: n, Text: pageTexts[n]})
	}
	return pages, nil
}

// contentPageFile matches the names pdfcpu writes extracted page content
// under: "<basename>_Content_page_7.txt".
var contentPageFile = regexp.MustCompile(`Content_page_(\d+)(?:\.txt)?$`)

func pageNumberFromFilename(name string) (int, bool) {
	m := contentPageFile.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	pageNum, err := strconv.Atoi(m[1])
	if err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}

// decodeContentText recovers readable text from a page content stream by
// collecting the string literals fed to the Tj/TJ/'/" text-show operators.
// Positioning operators are ignored; literals are space-joined, which is
// enough fidelity for retrieval chunking.
func decodeContentText(content []byte) string {
	var (
		out     strings.Builder
		literal strings.Builder
		inside  bool
		depth   int
		escaped bool
	)

	flush := func() {
		text := strings.TrimSpace(literal.String())
		if text != "" {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(text)
		}
		literal.Reset()
	}

	for i := 0; i < len(content); i++ {
		c := content[i]
		if !inside {
			if c == '(' {
				inside = true
				depth = 1
			}
			continue
		}
		if escaped {
			switch c {
			case 'n', 'r', 't':
				literal.WriteByte(' ')
			case '(', ')', '\\':
				literal.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			literal.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				inside = false
				flush()
			} else {
				literal.WriteByte(c)
			}
		default:
			literal.WriteByte(c)
		}
	}
	return out.String()
}
