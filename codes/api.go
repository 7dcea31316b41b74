package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pivotpie/piedocs-go/internal/barcode"
	"github.com/pivotpie/piedocs-go/internal/batch"
	"github.com/pivotpie/piedocs-go/internal/domain"
	"github.com/pivotpie/piedocs-go/internal/platform/auth"
	"github.com/pivotpie/piedocs-go/internal/profile"
	"github.com/pivotpie/piedocs-go/internal/render"
	"github.com/pivotpie/piedocs-go/internal/repo"
	svc "github.com/pivotpie/piedocs-go/internal/service/codes"
)

type codesService interface {
	IssueCode(ctx context.Context, input svc.IssueInput, auditCtx svc.AuditContext) (svc.IssueResult, error)
	IssueBatch(ctx context.Context, input svc.BatchInput, onProgress batch.ProgressFunc, auditCtx svc.AuditContext) (svc.BatchResult, error)
	GetCodeByValue(ctx context.Context, value string) (domain.IssuedCode, error)
	ListCodes(ctx context.Context, filter repo.CodeFilter) ([]domain.IssuedCode, error)
	RetireCode(ctx context.Context, id string, auditCtx svc.AuditContext) (domain.IssuedCode, error)
	CodeImage(ctx context.Context, value string, auditCtx svc.AuditContext) (svc.ImageResult, error)
	Validate(formatName string, value string) (barcode.Format, bool)
	Profile() profile.Spec
}

type codesAPI struct {
	logger  *slog.Logger
	service codesService
}

func newCodesAPI(logger *slog.Logger, service codesService) *codesAPI {
	return &codesAPI{
		logger:  logger,
		service: service,
	}
}

func (api *codesAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /codes", api.handleIssueCode)
	mux.HandleFunc("POST /codes/batch", api.handleIssueBatch)
	mux.HandleFunc("POST /codes/validate", api.handleValidate)
	mux.HandleFunc("GET /codes", api.handleListCodes)
	mux.HandleFunc("GET /codes/{code}", api.handleGetCode)
	mux.HandleFunc("GET /codes/{code}/image", api.handleCodeImage)
	mux.HandleFunc("POST /codes/{code}/retire", api.handleRetireCode)
	mux.HandleFunc("GET /formats", api.handleListFormats)
}

type codeResponse struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Format       string     `json:"format"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	DocumentID   string     `json:"document_id,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	SHA256       string     `json:"sha256,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    string     `json:"created_by"`
	RetiredAt    *time.Time `json:"retired_at,omitempty"`
	RetiredBy    string     `json:"retired_by,omitempty"`
}

func toCodeResponse(code domain.IssuedCode) codeResponse {
	return codeResponse{
		ID:           code.ID,
		Code:         code.Code,
		Format:       string(code.Format),
		Kind:         code.Kind(),
		Status:       code.Status,
		DocumentID:   code.DocumentID,
		DocumentType: code.DocumentType,
		SizeBytes:    code.SizeBytes,
		SHA256:       code.SHA256,
		CreatedAt:    code.CreatedAt,
		CreatedBy:    code.CreatedBy,
		RetiredAt:    code.RetiredAt,
		RetiredBy:    code.RetiredBy,
	}
}

type issueCodeRequest struct {
	Format       string `json:"format"`
	Value        string `json:"value"`
	Prefix       string `json:"prefix"`
	Suffix       string `json:"suffix"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Level        string `json:"level"`
}

func (api *codesAPI) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	format := barcode.Format(strings.ToUpper(strings.TrimSpace(req.Format)))
	result, err := api.service.IssueCode(r.Context(), svc.IssueInput{
		Format:       format,
		Value:        req.Value,
		Prefix:       req.Prefix,
		Suffix:       req.Suffix,
		DocumentID:   req.DocumentID,
		DocumentType: req.DocumentType,
		Width:        req.Width,
		Height:       req.Height,
		Level:        req.Level,
	}, api.auditContext(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	api.writeJSON(w, http.StatusCreated, map[string]any{
		"code":           toCodeResponse(result.Code),
		"image_data_url": result.Image.DataURL(),
		"download_url":   result.DownloadURL,
	})
}

type issueBatchRequest struct {
	Count        int    `json:"count"`
	Format       string `json:"format"`
	Prefix       string `json:"prefix"`
	Suffix       string `json:"suffix"`
	DocumentType string `json:"document_type"`
}

const maxBatchCount = 500

func (api *codesAPI) handleIssueBatch(w http.ResponseWriter, r *http.Request) {
	var req issueBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Count <= 0 {
		api.writeError(w, r, http.StatusBadRequest, "count_required")
		return
	}
	if req.Count > maxBatchCount {
		api.writeError(w, r, http.StatusBadRequest, "count_too_large")
		return
	}

	format := barcode.Format(strings.ToUpper(strings.TrimSpace(req.Format)))
	result, err := api.service.IssueBatch(r.Context(), svc.BatchInput{
		Count:        req.Count,
		Format:       format,
		Prefix:       req.Prefix,
		Suffix:       req.Suffix,
		DocumentType: req.DocumentType,
	}, nil, api.auditContext(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	issued := make([]codeResponse, 0, len(result.Issued))
	for _, code := range result.Issued {
		issued = append(issued, toCodeResponse(code))
	}
	failures := make([]map[string]any, 0, len(result.Failures))
	for _, failure := range result.Failures {
		failures = append(failures, map[string]any{
			"index": failure.Index,
			"code":  failure.Code,
			"error": failure.Error,
		})
	}

	api.writeJSON(w, http.StatusCreated, map[string]any{
		"requested": req.Count,
		"issued":    issued,
		"failures":  failures,
	})
}

type validateRequest struct {
	Format string `json:"format"`
	Value  string `json:"value"`
}

func (api *codesAPI) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Format) == "" {
		api.writeError(w, r, http.StatusBadRequest, "format_required")
		return
	}

	format, valid := api.service.Validate(req.Format, req.Value)
	api.writeJSON(w, http.StatusOK, map[string]any{
		"format": string(format),
		"value":  req.Value,
		"valid":  valid,
	})
}

func (api *codesAPI) handleListCodes(w http.ResponseWriter, r *http.Request) {
	filter := repo.CodeFilter{
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
		DocumentID: strings.TrimSpace(r.URL.Query().Get("document_id")),
		Limit:      clampInt(parseIntQuery(r, "limit", 100), 1, 500),
		Offset:     clampInt(parseIntQuery(r, "offset", 0), 0, 1<<30),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
		format, ok := barcode.ParseFormat(raw)
		if !ok {
			api.writeError(w, r, http.StatusBadRequest, "unknown_format")
			return
		}
		filter.Format = format
	}

	codes, err := api.service.ListCodes(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	out := make([]codeResponse, 0, len(codes))
	for _, code := range codes {
		out = append(out, toCodeResponse(code))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"codes": out})
}

func (api *codesAPI) handleGetCode(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.PathValue("code"))
	if value == "" {
		api.writeError(w, r, http.StatusBadRequest, "code_required")
		return
	}

	code, err := api.service.GetCodeByValue(r.Context(), value)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toCodeResponse(code))
}

func (api *codesAPI) handleCodeImage(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.PathValue("code"))
	if value == "" {
		api.writeError(w, r, http.StatusBadRequest, "code_required")
		return
	}

	result, err := api.service.CodeImage(r.Context(), value, api.auditContext(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"code":         toCodeResponse(result.Code),
		"download_url": result.URL,
	})
}

func (api *codesAPI) handleRetireCode(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.PathValue("code"))
	if value == "" {
		api.writeError(w, r, http.StatusBadRequest, "code_required")
		return
	}

	code, err := api.service.GetCodeByValue(r.Context(), value)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if code.Status != domain.StatusActive {
		api.writeError(w, r, http.StatusConflict, "code_not_active")
		return
	}

	retired, err := api.service.RetireCode(r.Context(), code.ID, api.auditContext(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toCodeResponse(retired))
}

func (api *codesAPI) handleListFormats(w http.ResponseWriter, r *http.Request) {
	prof := api.service.Profile()
	formats := make([]map[string]any, 0, len(barcode.Formats()))
	for _, info := range barcode.Formats() {
		entry := map[string]any{
			"format":          string(info.Format),
			"class":           string(info.Class),
			"max_length":      info.MaxLength,
			"has_check_digit": info.CheckDigit != nil,
			"enabled":         prof.Allows(info.Format),
		}
		formats = append(formats, entry)
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"default_format": string(prof.DefaultFormat()),
		"formats":        formats,
	})
}

func (api *codesAPI) auditContext(r *http.Request) svc.AuditContext {
	actor := ""
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		actor = identity.Subject
	}
	return svc.AuditContext{
		Actor:     actor,
		RequestID: r.Header.Get("X-Request-Id"),
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Service:   "codes",
	}
}

func (api *codesAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var lengthErr *barcode.InvalidLengthError
	var formatErr *barcode.InvalidFormatError
	var renderErr *render.RenderError

	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrDuplicateCode):
		api.writeError(w, r, http.StatusConflict, "code_exists")
	case errors.Is(err, svc.ErrFormatDisabled):
		api.writeError(w, r, http.StatusBadRequest, "format_disabled")
	case errors.As(err, &lengthErr):
		api.writeError(w, r, http.StatusBadRequest, "invalid_length")
	case errors.As(err, &formatErr):
		api.writeError(w, r, http.StatusBadRequest, "invalid_format")
	case errors.As(err, &renderErr):
		api.writeError(w, r, http.StatusUnprocessableEntity, "render_failed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		api.writeError(w, r, http.StatusRequestTimeout, "request_cancelled")
	default:
		api.logger.Error("request failed",
			"request_id", r.Header.Get("X-Request-Id"),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *codesAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *codesAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
