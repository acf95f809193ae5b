package infrastructure

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// FileExtractor implements evaluator.TextExtractor for stored uploads.
// Every failure degrades to an empty string: a missing or unreadable
// document must never abort an evaluation.
type FileExtractor struct {
	log *logrus.Logger
}

func NewFileExtractor(log *logrus.Logger) FileExtractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return FileExtractor{log: log}
}

func (e FileExtractor) Extract(ref string) string {
	if ref == "" {
		return ""
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		e.log.WithError(err).WithField("ref", ref).Warn("could not read upload")
		return ""
	}

	switch strings.ToLower(filepath.Ext(ref)) {
	case ".txt":
		return string(data)
	case ".pdf":
		text, err := extractPDFText(data)
		if err != nil {
			e.log.WithError(err).WithField("ref", ref).Warn("PDF extraction failed")
			return ""
		}
		return text
	case ".docx":
		text, err := extractDocxText(data)
		if err != nil {
			e.log.WithError(err).WithField("ref", ref).Warn("docx extraction failed")
			return ""
		}
		return text
	default:
		// Unknown format: salvage what we can.
		if len(data) > 10000 {
			data = data[:10000]
		}
		return string(data)
	}
}

func extractPDFText(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read PDF: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("get page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue // skip broken pages
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from any page")
	}
	return text, nil
}

var docxTag = regexp.MustCompile(`<[^>]+>`)

func extractDocxText(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()

	// GetContent returns word/document.xml; paragraph closes become
	// newlines, everything else in angle brackets goes away.
	content := r.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = docxTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content)), nil
}
