// Package document extracts plain text from uploaded documents.
package document

import (
	"bytes"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
)

// DefaultMaxSize is the upload size bound used when none is configured.
const DefaultMaxSize int64 = 10 * 1024 * 1024

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("File is empty")

// Extraction is the result of a successful extraction.
type Extraction struct {
	Content     string         `json:"content"`
	FileType    model.FileType `json:"fileType"`
	FileSize    int64          `json:"fileSize"`
	WordCount   int            `json:"wordCount"`
	ExtractedAt time.Time      `json:"extractedAt"`
}

// Extractor turns raw document bytes into text.
type Extractor struct {
	maxSize int64
	logger  *logger.Logger
}

// NewExtractor creates an extractor rejecting input above maxSize bytes.
func NewExtractor(maxSize int64, log *logger.Logger) *Extractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{maxSize: maxSize, logger: log.Named("document")}
}

// MaxSize returns the configured size bound.
func (e *Extractor) MaxSize() int64 {
	return e.maxSize
}

// Extract returns the trimmed text content of data.
func (e *Extractor) Extract(data []byte, fileType model.FileType) (*Extraction, error) {
	content, err := e.extract(data, fileType)
	if err != nil {
		metrics.RecordExtraction(string(fileType), "error")
		e.logger.Warn("document extraction failed",
			zap.String("file_type", string(fileType)),
			zap.Int("size", len(data)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordExtraction(string(fileType), "success")
	content = strings.TrimSpace(content)
	return &Extraction{
		Content:     content,
		FileType:    fileType,
		FileSize:    int64(len(data)),
		WordCount:   CountWords(content),
		ExtractedAt: time.Now(),
	}, nil
}

func (e *Extractor) extract(data []byte, fileType model.FileType) (string, error) {
	if !Supported(fileType) {
		return "", errors.Errorf("Unsupported file type: %s", fileType)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if size := int64(len(data)); size > e.maxSize {
		return "", errors.Errorf("File too large: %s (max: %s)", FormatSize(size), FormatSize(e.maxSize))
	}

	switch fileType {
	case model.FileTypePDF:
		text, err := extractPDF(data)
		if err != nil {
			return "", errors.Wrap(err, "Failed to extract PDF content")
		}
		return text, nil
	case model.FileTypeTXT:
		text, err := extractTXT(data)
		if err != nil {
			return "", errors.Wrap(err, "Failed to extract text file content")
		}
		return text, nil
	case model.FileTypeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return "", errors.Wrap(err, "Failed to extract DOCX content")
		}
		return text, nil
	case model.FileTypeDOC:
		text, err := extractDOCX(data)
		if err != nil {
			return "", errors.Errorf("Failed to extract DOC content: %v. Consider converting to DOCX format.", err)
		}
		return text, nil
	}

	return "", errors.Errorf("Unsupported file type: %s", fileType)
}

func extractPDF(data []byte) (_ string, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("corrupt document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "corrupt document")
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "reading text")
	}

	text, err := io.ReadAll(plain)
	if err != nil {
		return "", errors.Wrap(err, "reading text")
	}
	if strings.TrimSpace(string(text)) == "" {
		return "", errors.New("PDF appears to be empty or contains only images")
	}
	return string(text), nil
}

func extractTXT(data []byte) (string, error) {
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("Text file is empty")
	}
	return text, nil
}
