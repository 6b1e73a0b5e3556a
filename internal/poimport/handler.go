package poimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/partsdesk/partsdesk/internal/platform/httpx"
)

const defaultMaxUpload = 10 << 20

// Importer runs a batch synchronously.
type Importer interface {
	Import(ctx context.Context, raw []RawRow, opts Options) (Report, error)
}

// JobQueue hands a batch to the background worker and returns its job id.
type JobQueue interface {
	EnqueueImport(ctx context.Context, raw []RawRow, opts Options) (string, error)
}

// JobStore reads the status of background batches.
type JobStore interface {
	Get(ctx context.Context, jobID string) (JobStatus, error)
}

// SheetReader parses an uploaded file into raw rows.
type SheetReader func(filename string, r io.Reader) ([]RawRow, error)

// HandlerConfig groups Handler dependencies. Queue and Jobs may be nil, in
// which case async imports are rejected.
type HandlerConfig struct {
	Logger    *slog.Logger
	Importer  Importer
	Reader    SheetReader
	Queue     JobQueue
	Jobs      JobStore
	MaxUpload int64
}

// Handler exposes the import HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	importer  Importer
	reader    SheetReader
	queue     JobQueue
	jobs      JobStore
	maxUpload int64
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{
		logger:    logger,
		importer:  cfg.Importer,
		reader:    cfg.Reader,
		queue:     cfg.Queue,
		jobs:      cfg.Jobs,
		maxUpload: maxUpload,
		validator: validator.New(),
	}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/import", h.importFile)
	r.Post("/import/rows", h.importRows)
	r.Get("/import/{jobID}", h.jobStatus)
}

type uploadForm struct {
	TaxPercent string `validate:"omitempty,numeric"`
	Shipping   string `validate:"omitempty,numeric"`
	DryRun     string `validate:"omitempty,oneof=true false 1 0"`
	Async      string `validate:"omitempty,oneof=true false 1 0"`
}

type rowsRequest struct {
	Rows []RawRow `json:"rows" validate:"required,min=1"`
	Options
	Async bool `json:"async"`
}

type acceptedResponse struct {
	JobID string   `json:"job_id"`
	State JobState `json:"state"`
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, httpx.ErrPayloadTooLarge)
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	form := uploadForm{
		TaxPercent: r.PostFormValue("tax_percent"),
		Shipping:   r.PostFormValue("shipping"),
		DryRun:     r.PostFormValue("dry_run"),
		Async:      r.PostFormValue("async"),
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, fieldErrors(err)))
		return
	}
	opts, async, err := form.options()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: file is required", httpx.ErrValidation))
		return
	}
	defer file.Close()

	rows, err := h.reader(header.Filename, file)
	if err != nil {
		h.logger.Warn("read import file", slog.String("filename", header.Filename), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	h.run(w, r, rows, opts, async)
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var req rowsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, httpx.ErrPayloadTooLarge)
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, fieldErrors(err)))
		return
	}
	if err := validateOptions(req.Options); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.run(w, r, req.Rows, req.Options, req.Async)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, rows []RawRow, opts Options, async bool) {
	if async {
		if h.queue == nil {
			httpx.RespondError(w, fmt.Errorf("%w: async imports are not enabled", httpx.ErrValidation))
			return
		}
		if len(rows) == 0 {
			h.respondError(w, ErrEmptyBatch)
			return
		}
		jobID, err := h.queue.EnqueueImport(r.Context(), rows, opts)
		if err != nil {
			h.logger.Error("enqueue import", slog.Any("error", err))
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, acceptedResponse{JobID: jobID, State: JobQueued})
		return
	}

	report, err := h.importer.Import(r.Context(), rows, opts)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	status, err := h.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrValidation):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ErrImportRunning):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	default:
		h.logger.Error("import request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (f uploadForm) options() (Options, bool, error) {
	var opts Options
	if f.TaxPercent != "" {
		tax, err := decimal.NewFromString(f.TaxPercent)
		if err != nil {
			return opts, false, fmt.Errorf("%w: tax_percent", httpx.ErrValidation)
		}
		opts.TaxPercent = &tax
	}
	if f.Shipping != "" {
		shipping, err := decimal.NewFromString(f.Shipping)
		if err != nil {
			return opts, false, fmt.Errorf("%w: shipping", httpx.ErrValidation)
		}
		opts.ShippingCharges = shipping
	}
	opts.DryRun, _ = strconv.ParseBool(f.DryRun)
	async, _ := strconv.ParseBool(f.Async)
	if err := validateOptions(opts); err != nil {
		return opts, false, err
	}
	return opts, async, nil
}

func validateOptions(opts Options) error {
	if opts.TaxPercent != nil && (opts.TaxPercent.IsNegative() || opts.TaxPercent.GreaterThan(hundred)) {
		return fmt.Errorf("%w: tax_percent must be between 0 and 100", httpx.ErrValidation)
	}
	if opts.ShippingCharges.IsNegative() {
		return fmt.Errorf("%w: shipping must not be negative", httpx.ErrValidation)
	}
	return nil
}

func fieldErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += ", "
		}
		msg += fe.Field() + " " + fe.Tag()
	}
	return msg
}
