package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-reconciler/internal/api/middleware"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/jobs"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// MaxUploadBytes bounds a single uploaded file.
const MaxUploadBytes = 64 << 20

// ExtractHandler handles statement extraction endpoints.
type ExtractHandler struct {
	extractor  jobs.Extractor
	read       jobs.SourceReader
	publisher  jobs.Publisher
	cache      *cache.Cache
	statements infraBQ.StatementRepository
	log        zerolog.Logger
}

// NewExtractHandler creates a new extraction handler. results may be nil to
// disable caching and statements may be nil to skip persistence.
func NewExtractHandler(ex jobs.Extractor, read jobs.SourceReader, publisher jobs.Publisher, results *cache.Cache, statements infraBQ.StatementRepository, log zerolog.Logger) *ExtractHandler {
	return &ExtractHandler{
		extractor:  ex,
		read:       read,
		publisher:  publisher,
		cache:      results,
		statements: statements,
		log:        log,
	}
}

type extractRequest struct {
	GCSURI   string `json:"gcs_uri"`
	FileName string `json:"filename"`
}

type extractResponse struct {
	Checksum    string            `json:"checksum"`
	Cached      bool              `json:"cached"`
	StatementID string            `json:"statement_id,omitempty"`
	Result      domain.FileResult `json:"result"`
}

// Extract handles POST /api/extract. The body is either the raw file with
// ?filename=, or JSON naming a gs:// URI.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name, data, err := h.readUpload(ctx, w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := h.extract(ctx, name, data)
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// extract runs one file through the extractor, answering repeated uploads of
// the same bytes from the cache.
func (h *ExtractHandler) extract(ctx context.Context, name string, data []byte) extractResponse {
	checksum := jobs.Checksum(data)
	resp := extractResponse{Checksum: checksum}

	if h.cache != nil {
		if cached, ok := h.cache.Get(checksum); ok {
			resp.Cached = true
			resp.Result = cached.(domain.FileResult)
			resp.Result.File = name
			return resp
		}
	}

	ctx = logger.WithFile(ctx, name)
	resp.Result = h.extractor.ProcessBytes(ctx, name, data)
	if h.cache != nil {
		h.cache.Set(checksum, resp.Result, cache.DefaultExpiration)
	}

	if h.statements != nil {
		id, _, err := infraBQ.SaveStatement(ctx, h.statements, checksum, resp.Result)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Msg("Failed to store statement")
		}
		resp.StatementID = id
	}
	return resp
}

func (h *ExtractHandler) readUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, errors.New("Invalid request body")
		}
		if !gcsuploader.IsGCSURI(req.GCSURI) {
			return "", nil, errors.New("gcs_uri must be a gs:// URI")
		}
		data, err := h.read(ctx, req.GCSURI)
		if err != nil {
			h.log.Error().Err(err).Str("gcs_uri", req.GCSURI).Msg("Failed to fetch statement")
			return "", nil, fmt.Errorf("Failed to fetch %s", req.GCSURI)
		}
		name := req.FileName
		if name == "" {
			name = gcsuploader.ExtractFilenameFromGCSURI(req.GCSURI)
		}
		return name, data, nil
	}

	name := filepath.Base(r.URL.Query().Get("filename"))
	if name == "" || name == "." || name == "/" {
		return "", nil, errors.New("filename is required")
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		return "", nil, errors.New("Failed to read request body")
	}
	if len(data) == 0 {
		return "", nil, errors.New("Empty request body")
	}
	return name, data, nil
}

// ExtractAsync handles POST /api/extract/async. It takes {"sources": [...]}
// with gs:// URIs and answers with the queued job IDs.
func (h *ExtractHandler) ExtractAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Sources) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "sources are required")
		return
	}

	for i, src := range req.Sources {
		req.Sources[i] = strings.TrimSpace(src)
		if !gcsuploader.IsGCSURI(req.Sources[i]) {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a gs:// URI", src))
			return
		}
	}

	ids := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		job := &jobs.ExtractFileJob{Source: src}
		if err := h.publisher.PublishExtractFile(ctx, job); err != nil {
			h.log.Error().Err(err).Str("source", src).Msg("Failed to enqueue extraction job")
			middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue extraction job")
			return
		}
		ids = append(ids, job.JobID)
	}

	h.log.Info().Int("jobs", len(ids)).Msg("Extraction jobs enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_ids": ids,
		"count":   len(ids),
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
