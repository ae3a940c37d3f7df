package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/gemini-chat/internal/apperr"
	"github.com/capitalize-ai/gemini-chat/internal/document"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// FilesConfig bounds uploads.
type FilesConfig struct {
	MaxFileSize       int64
	MaxFilesPerUpload int
	AllowedFileTypes  []string
}

// FilesHandler handles document upload endpoints.
type FilesHandler struct {
	extractor *document.Extractor
	store     *document.Store
	cfg       FilesConfig
	responder
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(
	extractor *document.Extractor,
	store *document.Store,
	cfg FilesConfig,
	log *logger.Logger,
	development bool,
) *FilesHandler {
	if cfg.MaxFilesPerUpload <= 0 {
		cfg.MaxFilesPerUpload = 5
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = extractor.MaxSize()
	}
	return &FilesHandler{
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		responder: responder{logger: log.Named("files_handler"), development: development},
	}
}

// Upload handles POST /api/files/upload. Files are extracted concurrently;
// a file that fails is reported without failing the others.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.MaxFileSize*int64(h.cfg.MaxFilesPerUpload) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, r, apperr.Validation("files", "File size exceeds limit of "+document.FormatSize(h.cfg.MaxFileSize)))
			return
		}
		h.writeError(w, r, apperr.Validation("files", `Use "files" field for file uploads`))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.writeError(w, r, apperr.Validation("files", "Please select at least one file to upload"))
		return
	}
	if len(headers) > h.cfg.MaxFilesPerUpload {
		h.writeError(w, r, apperr.Validation("files", fmt.Sprintf("Maximum %d files allowed per upload", h.cfg.MaxFilesPerUpload)))
		return
	}

	files := make([]*model.UploadedFile, len(headers))
	failures := make([]error, len(headers))

	g, ctx := errgroup.WithContext(r.Context())
	for i, fh := range headers {
		i, fh := i, fh
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files[i], failures[i] = h.process(ctx, fh)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.writeError(w, r, apperr.Timeout(err))
		return
	}

	var (
		uploaded []*model.UploadedFile
		fileErrs []model.FileError
	)
	for i, fh := range headers {
		if failures[i] != nil {
			fileErrs = append(fileErrs, model.FileError{Filename: fh.Filename, Error: failures[i].Error()})
			continue
		}
		uploaded = append(uploaded, files[i])
	}

	if len(uploaded) == 0 {
		h.writeErrorDetails(w, r, apperr.Validation("files", "No files could be processed"), fileErrs)
		return
	}

	data := map[string]any{"files": uploaded}
	if len(fileErrs) > 0 {
		data["errors"] = fileErrs
	}
	writeSuccess(w, fmt.Sprintf("Successfully processed %d file(s)", len(uploaded)), data)
}

// process validates, extracts and stores one uploaded file.
func (h *FilesHandler) process(ctx context.Context, fh *multipart.FileHeader) (*model.UploadedFile, error) {
	mimeType := fh.Header.Get("Content-Type")
	fileType := document.FileTypeFromMIME(mimeType)
	if fileType == model.FileTypeUnknown {
		fileType = document.FileTypeFromExtension(fh.Filename)
	}
	if !document.Supported(fileType) {
		return nil, errors.Errorf("Unsupported file type: %s. Supported types: PDF, TXT, DOC, DOCX", mimeType)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = "." + string(fileType)
	}
	if len(h.cfg.AllowedFileTypes) > 0 && !slices.Contains(h.cfg.AllowedFileTypes, ext) {
		return nil, errors.Errorf("Unsupported file type: %s", ext)
	}
	if fh.Size > h.cfg.MaxFileSize {
		return nil, errors.Errorf("File too large: %s (max: %s)", document.FormatSize(fh.Size), document.FormatSize(h.cfg.MaxFileSize))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extraction, err := h.extractor.Extract(data, fileType)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	filename := id + ext
	if err := h.store.Save(filename, data); err != nil {
		h.logger.Error("failed to store upload", zap.String("filename", filename), zap.Error(err))
		return nil, errors.New("Failed to store file")
	}

	return &model.UploadedFile{
		Attachment: model.Attachment{
			ID:            id,
			Filename:      filename,
			OriginalName:  fh.Filename,
			FileType:      fileType,
			Content:       extraction.Content,
			WordCount:     extraction.WordCount,
			Size:          fh.Size,
			FormattedSize: document.FormatSize(fh.Size),
		},
		MimeType:    mimeType,
		ExtractedAt: extraction.ExtractedAt,
		UploadedAt:  time.Now(),
	}, nil
}

// SupportedTypes handles GET /api/files/supported-types
func (h *FilesHandler) SupportedTypes(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, "Supported file types retrieved successfully", map[string]any{
		"supportedTypes": document.SupportedTypes(h.cfg.MaxFileSize),
		"maxFileSize":    h.cfg.MaxFileSize,
		"maxFiles":       h.cfg.MaxFilesPerUpload,
	})
}

// Delete handles DELETE /api/files/{filename}
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Remove(chi.URLParam(r, "filename"))
	switch errors.Cause(err) {
	case nil:
		writeSuccess(w, "File deleted successfully", nil)
	case document.ErrNotFound:
		h.writeError(w, r, apperr.NotFound("File"))
	case document.ErrInvalidName:
		h.writeError(w, r, apperr.Validation("filename", "filename is invalid"))
	default:
		h.writeError(w, r, apperr.Internal(err))
	}
}

// Health handles GET /api/files/health
func (h *FilesHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats, _, err := h.store.Stats()
	if err != nil {
		h.writeError(w, r, apperr.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"maxFileSize":     h.cfg.MaxFileSize,
		"uploadDirectory": h.store.Dir(),
		"stats":           stats,
	})
}
