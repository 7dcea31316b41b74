package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/batch"
	"github.com/pivotpie/piedocs-go/internal/domain"
	"github.com/pivotpie/piedocs-go/internal/profile"
	"github.com/pivotpie/piedocs-go/internal/render"
	"github.com/pivotpie/piedocs-go/internal/repo"
	svc "github.com/pivotpie/piedocs-go/internal/service/codes"
)

type stubService struct {
	issueResult  svc.IssueResult
	issueErr     error
	batchResult  svc.BatchResult
	batchErr     error
	getResult    domain.IssuedCode
	getErr       error
	listResult   []domain.IssuedCode
	listErr      error
	retireResult domain.IssuedCode
	retireErr    error
	imageResult  svc.ImageResult
	imageErr     error

	lastIssueInput svc.IssueInput
	lastBatchInput svc.BatchInput
	lastRetireID   string
}

func (s *stubService) IssueCode(ctx context.Context, input svc.IssueInput, auditCtx svc.AuditContext) (svc.IssueResult, error) {
	s.lastIssueInput = input
	return s.issueResult, s.issueErr
}

func (s *stubService) IssueBatch(ctx context.Context, input svc.BatchInput, onProgress batch.ProgressFunc, auditCtx svc.AuditContext) (svc.BatchResult, error) {
	s.lastBatchInput = input
	return s.batchResult, s.batchErr
}

func (s *stubService) GetCodeByValue(ctx context.Context, value string) (domain.IssuedCode, error) {
	return s.getResult, s.getErr
}

func (s *stubService) ListCodes(ctx context.Context, filter repo.CodeFilter) ([]domain.IssuedCode, error) {
	return s.listResult, s.listErr
}

func (s *stubService) RetireCode(ctx context.Context, id string, auditCtx svc.AuditContext) (domain.IssuedCode, error) {
	s.lastRetireID = id
	return s.retireResult, s.retireErr
}

func (s *stubService) CodeImage(ctx context.Context, value string, auditCtx svc.AuditContext) (svc.ImageResult, error) {
	return s.imageResult, s.imageErr
}

func (s *stubService) Validate(formatName string, value string) (barcode.Format, bool) {
	format, ok := barcode.ParseFormat(formatName)
	if !ok {
		return format, false
	}
	return format, barcode.ValidFor(format, value)
}

func (s *stubService) Profile() profile.Spec {
	return profile.DefaultSpec()
}

func newTestAPI(service codesService) *http.ServeMux {
	api := newCodesAPI(slog.New(slog.NewJSONHandler(io.Discard, nil)), service)
	mux := http.NewServeMux()
	api.register(mux)
	return mux
}

func sampleCode() domain.IssuedCode {
	return domain.IssuedCode{
		ID:        "4f9a0c1e-0000-0000-0000-000000000001",
		Code:      "DOC-2026-0001",
		Format:    barcode.FormatCode128,
		Status:    domain.StatusActive,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy: "user-1",
	}
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHandleIssueCode(t *testing.T) {
	service := &stubService{
		issueResult: svc.IssueResult{
			Code:        sampleCode(),
			Image:       render.Image{Format: barcode.FormatCode128, Value: "DOC-2026-0001", PNG: []byte{1, 2, 3}},
			DownloadURL: "https://minio.local/codes/x.png?signed=1",
		},
	}
	mux := newTestAPI(service)

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"format":"code128","prefix":"DOC"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	codeBody, ok := body["code"].(map[string]any)
	if !ok {
		t.Fatalf("missing code object: %v", body)
	}
	if codeBody["code"] != "DOC-2026-0001" {
		t.Fatalf("code = %v, want DOC-2026-0001", codeBody["code"])
	}
	imageURL, _ := body["image_data_url"].(string)
	if !strings.HasPrefix(imageURL, "data:image/png;base64,") {
		t.Fatalf("image_data_url = %q", imageURL)
	}
	if body["download_url"] != "https://minio.local/codes/x.png?signed=1" {
		t.Fatalf("download_url = %v", body["download_url"])
	}
	if codeBody["kind"] != "barcode" {
		t.Fatalf("kind = %v, want barcode", codeBody["kind"])
	}

	// Format names are upper-cased before they reach the service.
	if service.lastIssueInput.Format != barcode.FormatCode128 {
		t.Fatalf("service format = %q, want CODE128", service.lastIssueInput.Format)
	}
}

func TestHandleIssueCodeInvalidJSON(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"format":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid_json" {
		t.Fatalf("error = %v, want invalid_json", body["error"])
	}
}

func TestHandleIssueCodeUnknownField(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"fmt":"CODE128"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleIssueCodeDuplicate(t *testing.T) {
	mux := newTestAPI(&stubService{issueErr: repo.ErrDuplicateCode})

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"format":"CODE128","value":"DOC-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "code_exists" {
		t.Fatalf("error = %v, want code_exists", body["error"])
	}
}

func TestHandleIssueCodeDisabledFormat(t *testing.T) {
	mux := newTestAPI(&stubService{issueErr: svc.ErrFormatDisabled})

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"format":"EAN13"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "format_disabled" {
		t.Fatalf("error = %v, want format_disabled", body["error"])
	}
}

func TestHandleIssueCodeInvalidFormatError(t *testing.T) {
	mux := newTestAPI(&stubService{issueErr: &barcode.InvalidFormatError{Format: barcode.FormatEAN13, Value: "abc"}})

	rec := doRequest(t, mux, http.MethodPost, "/codes", `{"format":"EAN13","value":"abc"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid_format" {
		t.Fatalf("error = %v, want invalid_format", body["error"])
	}
}

func TestHandleIssueBatch(t *testing.T) {
	service := &stubService{
		batchResult: svc.BatchResult{
			Issued:   []domain.IssuedCode{sampleCode()},
			Failures: []svc.BatchFailure{{Index: 1, Code: "DOC-BAD", Error: "render failed"}},
		},
	}
	mux := newTestAPI(service)

	rec := doRequest(t, mux, http.MethodPost, "/codes/batch", `{"count":2,"format":"CODE128"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	issued, _ := body["issued"].([]any)
	failures, _ := body["failures"].([]any)
	if len(issued) != 1 || len(failures) != 1 {
		t.Fatalf("issued=%d failures=%d, want 1 and 1", len(issued), len(failures))
	}
	if service.lastBatchInput.Count != 2 {
		t.Fatalf("service count = %d, want 2", service.lastBatchInput.Count)
	}
}

func TestHandleIssueBatchCountValidation(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodPost, "/codes/batch", `{"format":"CODE128"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing count: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodPost, "/codes/batch", `{"count":501,"format":"CODE128"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized count: status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "count_too_large" {
		t.Fatalf("error = %v, want count_too_large", body["error"])
	}
}

func TestHandleValidate(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodPost, "/codes/validate", `{"format":"EAN13","value":"0000000000017"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["valid"] != true {
		t.Fatalf("valid = %v, want true", body["valid"])
	}

	rec = doRequest(t, mux, http.MethodPost, "/codes/validate", `{"format":"EAN13","value":""}`)
	if body := decodeBody(t, rec); body["valid"] != false {
		t.Fatalf("empty value: valid = %v, want false", body["valid"])
	}

	rec = doRequest(t, mux, http.MethodPost, "/codes/validate", `{"format":"AZTEC","value":"123"}`)
	if body := decodeBody(t, rec); body["valid"] != false {
		t.Fatalf("unknown format: valid = %v, want false", body["valid"])
	}

	rec = doRequest(t, mux, http.MethodPost, "/codes/validate", `{"value":"123"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing format: status = %d, want 400", rec.Code)
	}
}

func TestHandleGetCodeNotFound(t *testing.T) {
	mux := newTestAPI(&stubService{getErr: repo.ErrNotFound})

	rec := doRequest(t, mux, http.MethodGet, "/codes/UNKNOWN", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetCode(t *testing.T) {
	mux := newTestAPI(&stubService{getResult: sampleCode()})

	rec := doRequest(t, mux, http.MethodGet, "/codes/DOC-2026-0001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "DOC-2026-0001" {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestHandleListCodesUnknownFormat(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodGet, "/codes?format=AZTEC", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRetireCode(t *testing.T) {
	retired := sampleCode()
	retiredAt := time.Now().UTC()
	retired.Status = domain.StatusRetired
	retired.RetiredAt = &retiredAt
	retired.RetiredBy = "admin-1"

	service := &stubService{getResult: sampleCode(), retireResult: retired}
	mux := newTestAPI(service)

	rec := doRequest(t, mux, http.MethodPost, "/codes/DOC-2026-0001/retire", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if service.lastRetireID != sampleCode().ID {
		t.Fatalf("retire id = %q, want %q", service.lastRetireID, sampleCode().ID)
	}
	if body := decodeBody(t, rec); body["status"] != domain.StatusRetired {
		t.Fatalf("status = %v, want retired", body["status"])
	}
}

func TestHandleRetireCodeAlreadyRetired(t *testing.T) {
	already := sampleCode()
	retiredAt := time.Now().UTC()
	already.Status = domain.StatusRetired
	already.RetiredAt = &retiredAt

	mux := newTestAPI(&stubService{getResult: already})

	rec := doRequest(t, mux, http.MethodPost, "/codes/DOC-2026-0001/retire", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "code_not_active" {
		t.Fatalf("error = %v, want code_not_active", body["error"])
	}
}

func TestHandleCodeImage(t *testing.T) {
	mux := newTestAPI(&stubService{
		imageResult: svc.ImageResult{Code: sampleCode(), URL: "https://minio.local/codes/x.png?signed=1"},
	})

	rec := doRequest(t, mux, http.MethodGet, "/codes/DOC-2026-0001/image", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if url, _ := body["download_url"].(string); !strings.Contains(url, "signed=1") {
		t.Fatalf("download_url = %v", body["download_url"])
	}
}

func TestHandleListFormats(t *testing.T) {
	mux := newTestAPI(&stubService{})

	rec := doRequest(t, mux, http.MethodGet, "/formats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	formats, _ := body["formats"].([]any)
	if len(formats) != 9 {
		t.Fatalf("formats = %d entries, want 9", len(formats))
	}
	if body["default_format"] != "CODE128" {
		t.Fatalf("default_format = %v, want CODE128", body["default_format"])
	}
}
