package document

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// TypeInfo describes a supported upload type.
type TypeInfo struct {
	Extension   string `json:"extension"`
	Description string `json:"description"`
	MaxSize     string `json:"maxSize"`
}

var mimeTypes = map[string]model.FileType{
	"application/pdf": model.FileTypePDF,
	"text/plain":      model.FileTypeTXT,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": model.FileTypeDOCX,
	"application/msword": model.FileTypeDOC,
}

var extensions = map[string]model.FileType{
	".pdf":  model.FileTypePDF,
	".txt":  model.FileTypeTXT,
	".docx": model.FileTypeDOCX,
	".doc":  model.FileTypeDOC,
}

// FileTypeFromMIME maps a MIME type, ignoring parameters, to a file type.
func FileTypeFromMIME(mime string) model.FileType {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if ft, ok := mimeTypes[strings.ToLower(strings.TrimSpace(mime))]; ok {
		return ft
	}
	return model.FileTypeUnknown
}

// FileTypeFromExtension maps a filename's extension to a file type.
func FileTypeFromExtension(name string) model.FileType {
	if ft, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return ft
	}
	return model.FileTypeUnknown
}

// Supported reports whether ft has an extractor.
func Supported(ft model.FileType) bool {
	switch ft {
	case model.FileTypePDF, model.FileTypeTXT, model.FileTypeDOCX, model.FileTypeDOC:
		return true
	}
	return false
}

// SupportedTypes lists every accepted MIME type.
func SupportedTypes(maxSize int64) map[string]TypeInfo {
	limit := FormatSize(maxSize)
	return map[string]TypeInfo{
		"application/pdf": {Extension: ".pdf", Description: "PDF Document", MaxSize: limit},
		"text/plain":      {Extension: ".txt", Description: "Text File", MaxSize: limit},
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {
			Extension: ".docx", Description: "Microsoft Word Document (2007+)", MaxSize: limit,
		},
		"application/msword": {Extension: ".doc", Description: "Microsoft Word Document (Legacy)", MaxSize: limit},
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in base-1024 units with at most two decimals.
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := math.Round(float64(size)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
