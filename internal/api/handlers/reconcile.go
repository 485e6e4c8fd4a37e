package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-reconciler/internal/api/middleware"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/ledger"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
	"github.com/dvloznov/statement-reconciler/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReconcileHandler runs reconciliations and serves stored runs.
type ReconcileHandler struct {
	extract *ExtractHandler
	opts    reconcile.Options
	runs    infraBQ.RunRepository
	log     zerolog.Logger
}

// NewReconcileHandler creates a new reconcile handler. runs may be nil when
// no run storage is configured.
func NewReconcileHandler(extract *ExtractHandler, opts reconcile.Options, runs infraBQ.RunRepository, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		extract: extract,
		opts:    opts,
		runs:    runs,
		log:     log,
	}
}

type reconcileRequest struct {
	LedgerURI      string   `json:"ledger_uri"`
	StatementURIs  []string `json:"statement_uris"`
	SubjectAccount string   `json:"subject_account"`
}

type namedFile struct {
	name string
	data []byte
}

type fileSummary struct {
	File         string                  `json:"file"`
	Layout       string                  `json:"layout,omitempty"`
	Method       domain.Method           `json:"method"`
	Transactions int                     `json:"transactions"`
	Validation   domain.ValidationResult `json:"validation"`
	Error        string                  `json:"error,omitempty"`
}

type reconcileResponse struct {
	RunID  string               `json:"run_id,omitempty"`
	Ledger *domain.LedgerResult `json:"ledger"`
	Files  []fileSummary        `json:"files"`
	Report reconcile.Report     `json:"report"`
}

// Reconcile handles POST /api/reconcile. It accepts a multipart form with a
// "ledger" file and one or more "statements" files, or JSON naming gs://
// URIs. With ?format=xlsx the answer is the workbook instead of JSON.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	ledgerFile, statements, subject, err := h.readInputs(ctx, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := ledger.Parse(ctx, ledgerFile.name, ledgerFile.data, ledger.Options{SubjectAccount: subject})
	if err != nil {
		h.log.Warn().Err(err).Str("file", ledgerFile.name).Msg("Failed to parse ledger")
		middleware.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to parse ledger: %v", err))
		return
	}

	results := make([]domain.FileResult, 0, len(statements))
	files := make([]fileSummary, 0, len(statements))
	for _, f := range statements {
		res := h.extract.extract(ctx, f.name, f.data).Result
		results = append(results, res)
		files = append(files, fileSummary{
			File:         res.File,
			Layout:       res.Layout,
			Method:       res.Method,
			Transactions: len(res.Transactions),
			Validation:   res.Validation,
			Error:        res.Error,
		})
	}

	rep, _ := reconcile.NewEngine(h.opts).Run(ctx, book.Rows, results)

	resp := reconcileResponse{Ledger: book, Files: files, Report: rep}
	if h.runs != nil {
		runID, err := infraBQ.SaveRun(ctx, h.runs, started, book, rep, h.opts)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to store reconciliation run")
		}
		resp.RunID = runID
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="conciliacao.xlsx"`)
		if err := report.WriteXLSX(w, rep); err != nil {
			h.log.Error().Err(err).Msg("Failed to write workbook")
		}
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *ReconcileHandler) readInputs(ctx context.Context, r *http.Request) (namedFile, []namedFile, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r)
	case "application/json":
		return h.readURIs(ctx, r)
	}
	return namedFile{}, nil, "", errors.New("Expected multipart/form-data or application/json")
}

func readMultipart(r *http.Request) (namedFile, []namedFile, string, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return namedFile{}, nil, "", errors.New("Invalid multipart form")
	}
	form := r.MultipartForm
	if len(form.File["ledger"]) != 1 {
		return namedFile{}, nil, "", errors.New("Exactly one ledger file is required")
	}
	if len(form.File["statements"]) == 0 {
		return namedFile{}, nil, "", errors.New("At least one statement file is required")
	}

	book, err := readPart(form.File["ledger"][0])
	if err != nil {
		return namedFile{}, nil, "", err
	}
	var statements []namedFile
	for _, fh := range form.File["statements"] {
		f, err := readPart(fh)
		if err != nil {
			return namedFile{}, nil, "", err
		}
		statements = append(statements, f)
	}
	return book, statements, r.FormValue("subject_account"), nil
}

func readPart(fh *multipart.FileHeader) (namedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return namedFile{}, fmt.Errorf("Failed to open %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return namedFile{}, fmt.Errorf("Failed to read %s", fh.Filename)
	}
	return namedFile{name: filepath.Base(fh.Filename), data: data}, nil
}

func (h *ReconcileHandler) readURIs(ctx context.Context, r *http.Request) (namedFile, []namedFile, string, error) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return namedFile{}, nil, "", errors.New("Invalid request body")
	}
	if len(req.StatementURIs) == 0 {
		return namedFile{}, nil, "", errors.New("statement_uris are required")
	}

	fetch := func(uri string) (namedFile, error) {
		if !gcsuploader.IsGCSURI(uri) {
			return namedFile{}, fmt.Errorf("%q is not a gs:// URI", uri)
		}
		data, err := h.extract.read(ctx, uri)
		if err != nil {
			h.log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to fetch file")
			return namedFile{}, fmt.Errorf("Failed to fetch %s", uri)
		}
		return namedFile{name: gcsuploader.ExtractFilenameFromGCSURI(uri), data: data}, nil
	}

	book, err := fetch(req.LedgerURI)
	if err != nil {
		return namedFile{}, nil, "", err
	}
	var statements []namedFile
	for _, uri := range req.StatementURIs {
		f, err := fetch(uri)
		if err != nil {
			return namedFile{}, nil, "", err
		}
		statements = append(statements, f)
	}
	return book, statements, req.SubjectAccount, nil
}

// ListRuns handles GET /api/runs
func (h *ReconcileHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	out := make([]infraBQ.RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Summary())
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  out,
		"count": len(out),
	})
}

// ListRunRows handles GET /api/runs/{id}/rows
func (h *ReconcileHandler) ListRunRows(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Run storage is not configured")
		return
	}
	runID := chi.URLParam(r, "id")

	rows, err := h.runs.ListRows(r.Context(), runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list run rows")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list run rows")
		return
	}
	if len(rows) == 0 {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	out := make([]reconcile.ViewRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ViewRow())
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"rows":   out,
		"count":  len(out),
	})
}
