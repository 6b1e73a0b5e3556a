package poimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	rows   []RawRow
	opts   Options
	report Report
	err    error
}

func (f *fakeImporter) Import(ctx context.Context, raw []RawRow, opts Options) (Report, error) {
	f.rows = raw
	f.opts = opts
	return f.report, f.err
}

type fakeQueue struct {
	rows []RawRow
	opts Options
}

func (f *fakeQueue) EnqueueImport(ctx context.Context, raw []RawRow, opts Options) (string, error) {
	f.rows = raw
	f.opts = opts
	return "job-1", nil
}

type fakeJobs map[string]JobStatus

func (f fakeJobs) Get(ctx context.Context, jobID string) (JobStatus, error) {
	status, ok := f[jobID]
	if !ok {
		return JobStatus{}, ErrNotFound
	}
	return status, nil
}

func lineReader(filename string, r io.Reader) ([]RawRow, error) {
	if !strings.HasSuffix(filename, ".csv") {
		return nil, errors.New("sheet: unsupported file format")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows []RawRow
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		rows = append(rows, RawRow{"OrderNumber": l})
	}
	return rows, nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/purchase-orders", h.MountRoutes)
	return r
}

func newTestHandler(importer Importer, queue JobQueue, jobs JobStore) *Handler {
	return NewHandler(HandlerConfig{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Importer: importer,
		Reader:   lineReader,
		Queue:    queue,
		Jobs:     jobs,
	})
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/purchase-orders/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImportFileReturnsReport(t *testing.T) {
	importer := &fakeImporter{report: Report{BatchID: "b-1", Created: 2}}
	router := newTestRouter(newTestHandler(importer, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "orders.csv", "PO-1\nPO-2", map[string]string{
		"tax_percent": "10",
		"shipping":    "4.50",
		"dry_run":     "true",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "b-1", report.BatchID)
	assert.Equal(t, 2, report.Created)

	require.Len(t, importer.rows, 2)
	require.NotNil(t, importer.opts.TaxPercent)
	assert.Equal(t, "10", importer.opts.TaxPercent.String())
	assert.Equal(t, "4.5", importer.opts.ShippingCharges.String())
	assert.True(t, importer.opts.DryRun)
}

func TestImportFileValidation(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"missing file", "", nil},
		{"unsupported file", "orders.pdf", nil},
		{"non numeric tax", "orders.csv", map[string]string{"tax_percent": "ten"}},
		{"tax above 100", "orders.csv", map[string]string{"tax_percent": "150"}},
		{"negative shipping", "orders.csv", map[string]string{"shipping": "-1"}},
		{"bad flag", "orders.csv", map[string]string{"dry_run": "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			importer := &fakeImporter{}
			router := newTestRouter(newTestHandler(importer, nil, nil))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tc.filename, "PO-1", tc.fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, importer.rows)
		})
	}
}

func TestImportFileAsyncEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	router := newTestRouter(newTestHandler(&fakeImporter{}, queue, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "orders.csv", "PO-1", map[string]string{"async": "1"}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","state":"queued"}`, rec.Body.String())
	assert.Len(t, queue.rows, 1)
}

func TestImportAsyncWithoutQueue(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeImporter{}, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "orders.csv", "PO-1", map[string]string{"async": "true"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportRowsJSON(t *testing.T) {
	importer := &fakeImporter{report: Report{BatchID: "b-2", Updated: 1}}
	router := newTestRouter(newTestHandler(importer, nil, nil))

	body := `{"rows":[{"OrderNumber":"PO-1","ItemQuantity":2.5}],"tax_percent":"0","shipping_charges":"12"}`
	req := httptest.NewRequest(http.MethodPost, "/api/purchase-orders/import/rows", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, importer.rows, 1)
	assert.Equal(t, json.Number("2.5"), importer.rows[0]["ItemQuantity"])
	require.NotNil(t, importer.opts.TaxPercent)
	assert.True(t, importer.opts.TaxPercent.IsZero())
	assert.Equal(t, "12", importer.opts.ShippingCharges.String())
}

func TestImportRowsRejectsEmptyAndMalformed(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeImporter{}, nil, nil))

	for _, body := range []string{`{"rows":[]}`, `{"rows":`, `{"rows":[{"OrderNumber":"PO-1"}],"tax_percent":"-3"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/purchase-orders/import/rows", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestImportMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrImportRunning, http.StatusConflict},
		{ErrEmptyBatch, http.StatusBadRequest},
		{errors.New("poimport: load vendors: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := newTestRouter(newTestHandler(&fakeImporter{err: tc.err}, nil, nil))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "orders.csv", "PO-1", nil))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}
}

func TestJobStatus(t *testing.T) {
	jobs := fakeJobs{"job-9": {JobID: "job-9", State: JobDone, Report: &Report{Created: 3}}}
	router := newTestRouter(newTestHandler(&fakeImporter{}, nil, jobs))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/purchase-orders/import/job-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, JobDone, status.State)
	assert.Equal(t, 3, status.Report.Created)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/purchase-orders/import/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
