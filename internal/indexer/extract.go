package indexer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docgrove/go-docchat-backend/internal/chunker"
	"github.com/docgrove/go-docchat-backend/internal/provider/storage"
)

// ErrUnsupportedType marks a file the pipeline cannot extract text from.
// It is a permanent, per-file condition.
var ErrUnsupportedType = errors.New("unsupported file type")

// maxFileBytes caps how much of a single document is read into memory.
const maxFileBytes = 50 << 20

// unit is one location-tagged span of extracted text. Chunking never crosses
// a unit boundary.
type unit struct {
	text string
	meta chunker.SourceMeta
}

// extract reads a document and returns its text as location units: one per
// page for PDFs, one per heading section for markdown, a single unit for
// plain text.
func extract(meta storage.FileMetadata, r io.Reader) ([]unit, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", meta.Name, err)
	}

	switch {
	case isPDF(meta, data):
		return extractPDF(data)
	case isMarkdown(meta):
		return extractMarkdown(string(data)), nil
	case isText(meta.MimeType):
		return []unit{{text: string(data)}}, nil
	default:
		return nil, fmt.Errorf("%s (%s): %w", meta.Name, meta.MimeType, ErrUnsupportedType)
	}
}

func isPDF(meta storage.FileMetadata, data []byte) bool {
	return meta.MimeType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(meta.Name), ".pdf") ||
		bytes.HasPrefix(data, []byte("%PDF-"))
}

func isMarkdown(meta storage.FileMetadata) bool {
	name := strings.ToLower(meta.Name)
	return meta.MimeType == "text/markdown" ||
		strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown")
}

// nativeExportTarget reports the rendition to request for native documents,
// formats that only exist inside the provider and have no raw byte form.
// Google Workspace types are the only such family the backends produce.
func nativeExportTarget(mime string) (string, bool) {
	if strings.HasPrefix(mime, "application/vnd.google-apps.") {
		return "text/plain", true
	}
	return "", false
}

func isText(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/xml", "application/octet-stream":
		// octet-stream is what object stores report for unknown uploads;
		// treat it as text and let the chunker normalize.
		return true
	}
	return false
}

// extractPDF decodes the document and emits one unit per page, tagged with
// its 1-based page number. Pages that yield no text are skipped.
func extractPDF(data []byte) ([]unit, error) {
	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	var units []unit
	for i := 1; i <= rd.NumPage(); i++ {
		page := rd.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single corrupt page does not fail the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		n := i
		units = append(units, unit{text: text, meta: chunker.SourceMeta{Page: &n}})
	}
	return units, nil
}

// extractMarkdown walks the document line by line and groups text under its
// heading path ("Guide > Setup > Install"). Deeper headings push onto the
// path, shallower or equal ones pop back.
func extractMarkdown(text string) []unit {
	type level struct {
		depth int
		title string
	}
	var (
		units []unit
		stack []level
		body  strings.Builder
	)

	path := func() string {
		parts := make([]string, len(stack))
		for i, l := range stack {
			parts[i] = l.title
		}
		return strings.Join(parts, " > ")
	}
	flush := func(heading string) {
		if strings.TrimSpace(body.String()) != "" {
			units = append(units, unit{
				text: body.String(),
				meta: chunker.SourceMeta{HeadingPath: heading},
			})
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if depth, title, ok := parseHeading(trimmed); ok {
			flush(path())
			for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, level{depth: depth, title: title})
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush(path())
	return units
}

func parseHeading(line string) (depth int, title string, ok bool) {
	if !strings.HasPrefix(line, "#") {
		return 0, "", false
	}
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i > 6 || i >= len(line) || line[i] != ' ' {
		return 0, "", false
	}
	title = strings.TrimSpace(line[i:])
	if title == "" {
		return 0, "", false
	}
	return i, title, true
}
